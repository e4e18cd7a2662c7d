package manifest

import "testing"

func TestValidateEmptyServicesFails(t *testing.T) {
	err := Validate(&ComposeFile{})
	if err == nil {
		t.Fatal("expected error for empty services, got none")
	}
}

func TestValidateSelfDependencyFails(t *testing.T) {
	cf := &ComposeFile{
		Services: map[string]Service{
			"a": {Name: "a", DependsOn: NewDependsOnFromList([]string{"a"})},
		},
	}
	if err := Validate(cf); err == nil {
		t.Fatal("expected error for self-referential dependsOn, got none")
	}
}

func TestValidateMissingDependencyFails(t *testing.T) {
	cf := &ComposeFile{
		Services: map[string]Service{
			"web": {Name: "web", DependsOn: NewDependsOnFromList([]string{"app"})},
		},
	}
	if err := Validate(cf); err == nil {
		t.Fatal("expected error for missing dependency, got none")
	}
}

func TestValidateUnknownConfigReferenceFails(t *testing.T) {
	cf := &ComposeFile{
		Services: map[string]Service{
			"web": {Name: "web", Configs: []ConfigReference{{Source: "nginx.conf"}}},
		},
	}
	if err := Validate(cf); err == nil {
		t.Fatal("expected error for unresolved config reference, got none")
	}
}

func TestValidateExternalConfigFails(t *testing.T) {
	cf := &ComposeFile{
		Services: map[string]Service{
			"web": {Name: "web"},
		},
		Configs: map[string]ConfigDef{
			"nginx.conf": {External: NewExternalFromBool(true)},
		},
	}
	if err := Validate(cf); err == nil {
		t.Fatal("expected error for external config definition, got none")
	}
}

func TestValidateAcceptsWellFormedManifest(t *testing.T) {
	cf := &ComposeFile{
		Services: map[string]Service{
			"web": {
				Name:      "web",
				Image:     "nginx",
				DependsOn: NewDependsOnFromList([]string{"app"}),
				Configs:   []ConfigReference{{Source: "nginx.conf"}},
			},
			"app": {Name: "app", Image: "myapp"},
		},
		Configs: map[string]ConfigDef{
			"nginx.conf": {File: "./nginx.conf"},
		},
	}
	if err := Validate(cf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
