package manifest

import "testing"

func TestNormalizeHostnameDefaultsToServiceName(t *testing.T) {
	if got := NormalizeHostname(Service{Name: "web"}); got != "web" {
		t.Errorf("NormalizeHostname() = %q, want %q", got, "web")
	}
	if got := NormalizeHostname(Service{Name: "web", Hostname: "custom"}); got != "custom" {
		t.Errorf("NormalizeHostname() = %q, want %q", got, "custom")
	}
}

func TestNormalizeResourcesParsesMemoryAndCPU(t *testing.T) {
	svc := Service{
		Name: "app",
		Deploy: &Deploy{
			Resources: &ResourceLimits{CPUs: "1.5", Memory: "512m"},
		},
	}
	got, err := NormalizeResources(svc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.CPUs != 1 {
		t.Errorf("CPUs = %d, want 1 (floor of 1.5)", got.CPUs)
	}
	if want := int64(512 * 1024 * 1024); got.MemoryBytes != want {
		t.Errorf("MemoryBytes = %d, want %d", got.MemoryBytes, want)
	}
}

func TestNormalizeResourcesNoDeployIsZeroValue(t *testing.T) {
	got, err := NormalizeResources(Service{Name: "app"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.MemoryBytes != 0 || got.CPUs != 0 {
		t.Errorf("got %+v, want zero value", got)
	}
}

func TestNormalizeResourcesInvalidMemoryFails(t *testing.T) {
	svc := Service{Name: "app", Deploy: &Deploy{Resources: &ResourceLimits{Memory: "not-a-size"}}}
	if _, err := NormalizeResources(svc); err == nil {
		t.Fatal("expected error for invalid memory string, got none")
	}
}

func TestParseVolumeSpec(t *testing.T) {
	tests := map[string]struct {
		spec    string
		want    ParsedMount
		wantErr bool
	}{
		"bind mount absolute": {
			spec: "/data:/var/lib/data",
			want: ParsedMount{Kind: MountBind, Source: "/data", Target: "/var/lib/data"},
		},
		"bind mount relative": {
			spec: "./data:/var/lib/data:ro",
			want: ParsedMount{Kind: MountBind, Source: "./data", Target: "/var/lib/data", ReadOnly: true},
		},
		"bind mount home": {
			spec: "~/data:/var/lib/data",
			want: ParsedMount{Kind: MountBind, Source: "~/data", Target: "/var/lib/data"},
		},
		"named volume": {
			spec: "dbdata:/var/lib/data",
			want: ParsedMount{Kind: MountNamed, Source: "dbdata", Target: "/var/lib/data"},
		},
		"named volume, no target defaults to source": {
			spec: "dbdata",
			want: ParsedMount{Kind: MountNamed, Source: "dbdata", Target: "dbdata"},
		},
		"invalid option": {
			spec:    "dbdata:/data:rw",
			wantErr: true,
		},
		"empty source": {
			spec:    ":/data",
			wantErr: true,
		},
		"too many parts": {
			spec:    "a:b:ro:extra",
			wantErr: true,
		},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := ParseVolumeSpec(test.spec)
			if test.wantErr {
				if err == nil {
					t.Fatalf("ParseVolumeSpec(%q): expected error, got none", test.spec)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseVolumeSpec(%q): unexpected error: %v", test.spec, err)
			}
			if got != test.want {
				t.Errorf("ParseVolumeSpec(%q) = %+v, want %+v", test.spec, got, test.want)
			}
		})
	}
}

func TestConfigMountTargetDefaults(t *testing.T) {
	if got := ConfigMountTarget(ConfigReference{Source: "app.conf"}, false); got != "/app.conf" {
		t.Errorf("config default target = %q, want %q", got, "/app.conf")
	}
	if got := ConfigMountTarget(ConfigReference{Source: "db-pass"}, true); got != "/run/secrets/db-pass" {
		t.Errorf("secret default target = %q, want %q", got, "/run/secrets/db-pass")
	}
	if got := ConfigMountTarget(ConfigReference{Source: "app.conf", Target: "/etc/app.conf"}, false); got != "/etc/app.conf" {
		t.Errorf("explicit target = %q, want %q", got, "/etc/app.conf")
	}
}
