package depgraph

import (
	"testing"

	"github.com/compote-dev/compote/internal/manifest"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func serviceWithDeps(deps ...string) manifest.Service {
	return manifest.Service{DependsOn: manifest.NewDependsOnFromList(deps)}
}

func composeFile(services map[string]manifest.Service) *manifest.ComposeFile {
	return &manifest.ComposeFile{Services: services}
}

var checkResolveBatchesTests = map[string]struct {
	services map[string]manifest.Service
	batches  [][]string
	wantErr  bool
}{
	"single node": {
		services: map[string]manifest.Service{
			"a": serviceWithDeps(),
		},
		batches: [][]string{{"a"}},
	},
	"two-service health gate": {
		services: map[string]manifest.Service{
			"web": serviceWithDeps("app"),
			"app": serviceWithDeps(),
		},
		batches: [][]string{{"app"}, {"web"}},
	},
	"diamond dependency": {
		services: map[string]manifest.Service{
			"app": serviceWithDeps("s1", "s2"),
			"s1":  serviceWithDeps("db"),
			"s2":  serviceWithDeps("db"),
			"db":  serviceWithDeps(),
		},
		batches: [][]string{{"db"}, {"s1", "s2"}, {"app"}},
	},
	"independent services batch together": {
		services: map[string]manifest.Service{
			"c": serviceWithDeps(),
			"a": serviceWithDeps(),
			"b": serviceWithDeps(),
		},
		batches: [][]string{{"a", "b", "c"}},
	},
	"self edge is a cycle": {
		services: map[string]manifest.Service{
			"a": serviceWithDeps("a"),
		},
		wantErr: true,
	},
	"two-node cycle": {
		services: map[string]manifest.Service{
			"a": serviceWithDeps("b"),
			"b": serviceWithDeps("a"),
		},
		wantErr: true,
	},
}

func TestResolveBatches(t *testing.T) {
	for name, test := range checkResolveBatchesTests {
		t.Run(name, func(t *testing.T) {
			g, err := Build(composeFile(test.services))
			if test.wantErr {
				if err == nil {
					t.Fatalf("Build(%s): expected error, got none", name)
				}
				return
			}
			if err != nil {
				t.Fatalf("Build(%s): unexpected error: %v", name, err)
			}

			batches, err := g.ResolveBatches()
			if err != nil {
				t.Fatalf("ResolveBatches(%s): unexpected error: %v", name, err)
			}
			if diff := cmp.Diff(test.batches, batches, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("ResolveBatches(%s) diff (-want +got):\n%s", name, diff)
			}

			seen := make(map[string]bool)
			for _, batch := range batches {
				for _, node := range batch {
					if seen[node] {
						t.Errorf("%s: service %q appears in more than one batch", name, node)
					}
					seen[node] = true
				}
			}
			for name := range test.services {
				if !seen[name] {
					t.Errorf("service %q missing from batches", name)
				}
			}
		})
	}
}

func TestBuildMissingDependency(t *testing.T) {
	_, err := Build(composeFile(map[string]manifest.Service{
		"web": serviceWithDeps("app"),
	}))
	missing, ok := err.(*MissingDependencyError)
	if !ok {
		t.Fatalf("expected *MissingDependencyError, got %T: %v", err, err)
	}
	if missing.Service != "web" || missing.Dependency != "app" {
		t.Errorf("got %+v, want {Service:web Dependency:app}", missing)
	}
}

func TestGetHealthDependencies(t *testing.T) {
	deps := manifest.NewDependsOnFromMap(map[string]manifest.DependsOnEntry{
		"db": {Condition: manifest.ConditionServiceHealthy},
	})
	g, err := Build(composeFile(map[string]manifest.Service{
		"app": {DependsOn: deps},
		"db":  serviceWithDeps(),
	}))
	if err != nil {
		t.Fatalf("Build: unexpected error: %v", err)
	}

	health := g.GetHealthDependencies()
	if !health["db"].Has("app") {
		t.Errorf("expected db -> {app} in health dependencies, got %v", health)
	}
}
