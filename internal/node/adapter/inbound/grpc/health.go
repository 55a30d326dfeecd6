package grpc_handler

import (
	"fmt"
	"net"

	"github.com/anthanhphan/gosdk/logger"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health service name peers and orchestrators check.
const ServiceName = "shardring.Node"

// HealthServer exposes the standard gRPC health protocol. The node reports
// SERVING only while its membership entry is published.
type HealthServer struct {
	server *grpc.Server
	health *health.Server
	port   int
}

// NewHealthServer creates the server in NOT_SERVING state.
func NewHealthServer(port int) *HealthServer {
	server := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(server, hs)
	reflection.Register(server)

	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)

	return &HealthServer{server: server, health: hs, port: port}
}

// SetRegistered flips the serving status. It matches the registrar's
// OnChange callback.
func (h *HealthServer) SetRegistered(registered bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if registered {
		status = healthpb.HealthCheckResponse_SERVING
	}
	h.health.SetServingStatus("", status)
	h.health.SetServingStatus(ServiceName, status)
	logger.Debugw("Health status changed", "service", ServiceName, "status", status.String())
}

// Start listens on the configured port and serves until Stop.
func (h *HealthServer) Start() error {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", h.port))
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", h.port, err)
	}
	return h.Serve(listener)
}

// Serve serves on an existing listener.
func (h *HealthServer) Serve(listener net.Listener) error {
	return h.server.Serve(listener)
}

// Stop marks every service NOT_SERVING and drains in-flight calls.
func (h *HealthServer) Stop() {
	h.health.Shutdown()
	h.server.GracefulStop()
}
