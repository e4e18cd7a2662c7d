package capability

import "testing"

func TestParsePortMapping(t *testing.T) {
	tests := map[string]struct {
		spec    string
		want    PortMapping
		wantErr bool
	}{
		"host and container port": {
			spec: "18080:80",
			want: PortMapping{HostIP: "0.0.0.0", HostPort: 18080, ContainerPort: 80, Proto: ProtoTCP},
		},
		"explicit host ip": {
			spec: "127.0.0.1:18080:80",
			want: PortMapping{HostIP: "127.0.0.1", HostPort: 18080, ContainerPort: 80, Proto: ProtoTCP},
		},
		"udp protocol": {
			spec: "5353:53/udp",
			want: PortMapping{HostIP: "0.0.0.0", HostPort: 5353, ContainerPort: 53, Proto: ProtoUDP},
		},
		"unsupported protocol": {
			spec:    "80:80/sctp",
			wantErr: true,
		},
		"out of range host port": {
			spec:    "70000:80",
			wantErr: true,
		},
		"malformed": {
			spec:    "not-a-port-mapping",
			wantErr: true,
		},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := ParsePortMapping(test.spec)
			if test.wantErr {
				if err == nil {
					t.Fatalf("ParsePortMapping(%q): expected error, got none", test.spec)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParsePortMapping(%q): unexpected error: %v", test.spec, err)
			}
			if got != test.want {
				t.Errorf("ParsePortMapping(%q) = %+v, want %+v", test.spec, got, test.want)
			}
		})
	}
}

func TestPortMappingStringIsAFixedPoint(t *testing.T) {
	m, err := ParsePortMapping("18080:80/tcp")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	reparsed, err := ParsePortMapping(m.String())
	if err != nil {
		t.Fatalf("unexpected error reparsing: %v", err)
	}
	if reparsed != m {
		t.Errorf("re-parsing canonical form = %+v, want %+v", reparsed, m)
	}
}

func TestParseSelector(t *testing.T) {
	tests := map[string]struct {
		spec    string
		want    Selector
		wantErr bool
	}{
		"bare service":  {spec: "worker", want: Selector{Service: "worker", HasAll: true}},
		"with replica":  {spec: "worker#2", want: Selector{Service: "worker", Replica: 2}},
		"empty service": {spec: "#2", wantErr: true},
		"zero replica":  {spec: "worker#0", wantErr: true},
		"non-numeric":   {spec: "worker#x", wantErr: true},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := ParseSelector(test.spec)
			if test.wantErr {
				if err == nil {
					t.Fatalf("ParseSelector(%q): expected error, got none", test.spec)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseSelector(%q): unexpected error: %v", test.spec, err)
			}
			if got != test.want {
				t.Errorf("ParseSelector(%q) = %+v, want %+v", test.spec, got, test.want)
			}
		})
	}
}

func TestAggregateSelectorsAnyAllWins(t *testing.T) {
	agg := AggregateSelectors([]Selector{
		{Service: "worker", Replica: 2},
		{Service: "worker", HasAll: true},
	})
	if v, ok := agg["worker"]; !ok || v != nil {
		t.Errorf("AggregateSelectors() = %v, want worker -> nil (ALL)", agg)
	}
}

func TestAggregateSelectorsUnionsIndices(t *testing.T) {
	agg := AggregateSelectors([]Selector{
		{Service: "worker", Replica: 1},
		{Service: "worker", Replica: 2},
	})
	want := map[int]bool{1: true, 2: true}
	if len(agg["worker"]) != len(want) {
		t.Fatalf("AggregateSelectors() = %v, want %v", agg["worker"], want)
	}
	for k := range want {
		if !agg["worker"][k] {
			t.Errorf("missing replica %d in aggregate", k)
		}
	}
}

func TestParseScaleTarget(t *testing.T) {
	tests := map[string]struct {
		spec    string
		want    ScaleTarget
		wantErr bool
	}{
		"valid":         {spec: "worker=3", want: ScaleTarget{Service: "worker", Replicas: 3}},
		"zero replicas": {spec: "worker=0", want: ScaleTarget{Service: "worker", Replicas: 0}},
		"negative":      {spec: "worker=-1", wantErr: true},
		"missing equal": {spec: "worker3", wantErr: true},
		"empty service": {spec: "=3", wantErr: true},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := ParseScaleTarget(test.spec)
			if test.wantErr {
				if err == nil {
					t.Fatalf("ParseScaleTarget(%q): expected error, got none", test.spec)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseScaleTarget(%q): unexpected error: %v", test.spec, err)
			}
			if got != test.want {
				t.Errorf("ParseScaleTarget(%q) = %+v, want %+v", test.spec, got, test.want)
			}
		})
	}
}
