package config

import "testing"

func validConfig() *Config {
	return &Config{
		Services: []ServiceSpec{
			{Name: "db", Command: "sh -c 'serve-db'"},
			{Name: "api", Command: "sh -c 'serve-api'", DependsOn: []string{"db"}},
		},
		Dev: DevOptions{
			ProxyPort:   7080,
			UIPort:      10350,
			StopTimeout: 5_000_000_000,
			RingSize:    500,
		},
	}
}

func TestValidateAcceptsWellFormedConfig(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("expected valid config, got error: %v", err)
	}
}

func TestValidateRejectsDuplicateNames(t *testing.T) {
	cfg := validConfig()
	cfg.Services = append(cfg.Services, ServiceSpec{Name: "db", Command: "sh -c 'x'"})
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected duplicate name to be rejected")
	}
}

func TestValidateRejectsUnknownDependency(t *testing.T) {
	cfg := validConfig()
	cfg.Services[1].DependsOn = []string{"ghost"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected unknown dependency to be rejected")
	}
}

func TestValidateRejectsSelfDependency(t *testing.T) {
	cfg := validConfig()
	cfg.Services[0].DependsOn = []string{"db"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected self-dependency to be rejected")
	}
}

func TestValidateRejectsCycles(t *testing.T) {
	cfg := validConfig()
	cfg.Services[0].DependsOn = []string{"api"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected dependency cycle to be rejected")
	}
}

func TestValidateRejectsNonPositiveHealthValues(t *testing.T) {
	cfg := validConfig()
	cfg.Services[0].Health = &HealthSpec{Kind: HealthHTTP, Path: "/health", Interval: 0, Timeout: 1, Retries: 3}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected non-positive interval to be rejected")
	}
}

func TestValidateRejectsPortCollisionBetweenProxyAndUI(t *testing.T) {
	cfg := validConfig()
	cfg.Dev.UIPort = cfg.Dev.ProxyPort
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected proxy_port == ui_port to be rejected")
	}
}

func TestByNameAndNames(t *testing.T) {
	cfg := validConfig()
	if _, ok := cfg.ByName("api"); !ok {
		t.Fatal("expected to find service api")
	}
	if _, ok := cfg.ByName("ghost"); ok {
		t.Fatal("did not expect to find service ghost")
	}
	names := cfg.Names()
	if len(names) != 2 || names[0] != "db" || names[1] != "api" {
		t.Fatalf("unexpected names: %v", names)
	}
}

func TestFromMapLoadsAndValidates(t *testing.T) {
	doc := map[string]interface{}{
		"services": []map[string]interface{}{
			{"name": "db", "command": "sh -c 'serve-db'"},
		},
	}
	cfg, err := FromMap(doc)
	if err != nil {
		t.Fatalf("FromMap failed: %v", err)
	}
	if cfg.Dev.ProxyPort != 7080 {
		t.Fatalf("expected default proxy port 7080, got %d", cfg.Dev.ProxyPort)
	}
	if len(cfg.Services) != 1 || cfg.Services[0].Name != "db" {
		t.Fatalf("unexpected services: %+v", cfg.Services)
	}
}
