package server

import (
	"testing"

	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
)

// mockServiceRegistrar implements grpc.ServiceRegistrar for testing.
type mockServiceRegistrar struct {
	services []string
}

func (m *mockServiceRegistrar) RegisterService(desc *grpc.ServiceDesc, impl interface{}) {
	m.services = append(m.services, desc.ServiceName)
}

func TestRegisterServices(t *testing.T) {
	mockReg := &mockServiceRegistrar{}
	RegisterServices(mockReg, grpchealth.NewServer())

	if len(mockReg.services) != 1 || mockReg.services[0] != "grpc.health.v1.Health" {
		t.Errorf("registered services = %v, want [grpc.health.v1.Health]", mockReg.services)
	}
}

func TestNewGRPCServer(t *testing.T) {
	s := NewGRPCServer(nil, grpchealth.NewServer())
	defer s.Stop()

	info := s.GetServiceInfo()
	if _, ok := info["grpc.health.v1.Health"]; !ok {
		t.Errorf("health service not registered; got %v", info)
	}
}
