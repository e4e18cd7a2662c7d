package manifest

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestCommandAsArray(t *testing.T) {
	tests := map[string]struct {
		cmd  Command
		want []string
	}{
		"unset":       {cmd: Command{}, want: nil},
		"from string": {cmd: NewCommandFromString("sh -c sleep"), want: []string{"sh -c sleep"}},
		"from list":   {cmd: NewCommandFromList([]string{"sh", "-c", "sleep"}), want: []string{"sh", "-c", "sleep"}},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			if diff := cmp.Diff(test.want, test.cmd.AsArray()); diff != "" {
				t.Errorf("AsArray() diff (-want +got):\n%s", diff)
			}
		})
	}
}

func TestEnvironmentMergesListAndMapForms(t *testing.T) {
	fromList := NewEnvironmentFromList([]string{"A=1", "B=2", "C"})
	want := map[string]string{"A": "1", "B": "2", "C": ""}
	if diff := cmp.Diff(want, fromList.AsDictionary()); diff != "" {
		t.Errorf("AsDictionary() diff (-want +got):\n%s", diff)
	}

	fromMap := NewEnvironmentFromMap(map[string]string{"X": "y"})
	if got := fromMap.AsDictionary()["X"]; got != "y" {
		t.Errorf("AsDictionary()[X] = %q, want %q", got, "y")
	}
}

func TestEnvironmentAsArrayPreservesFirstSeenOrder(t *testing.T) {
	env := NewEnvironmentFromList([]string{"B=2", "A=1"})
	env.Set("B", "3")
	want := []string{"B=3", "A=1"}
	if diff := cmp.Diff(want, env.AsArray()); diff != "" {
		t.Errorf("AsArray() diff (-want +got):\n%s", diff)
	}
}

func TestDependsOnListImpliesServiceStarted(t *testing.T) {
	d := NewDependsOnFromList([]string{"db", "cache"})
	dict := d.AsDictionary()
	for _, name := range []string{"db", "cache"} {
		if dict[name].Condition != ConditionServiceStarted {
			t.Errorf("dependsOn[%s].Condition = %v, want %v", name, dict[name].Condition, ConditionServiceStarted)
		}
	}
}

func TestDependsOnMapDefaultsMissingCondition(t *testing.T) {
	d := NewDependsOnFromMap(map[string]DependsOnEntry{
		"db": {},
		"api": {
			Condition: ConditionServiceHealthy,
			Restart:   true,
		},
	})
	dict := d.AsDictionary()
	if dict["db"].Condition != ConditionServiceStarted {
		t.Errorf("db condition = %v, want default %v", dict["db"].Condition, ConditionServiceStarted)
	}
	if dict["api"].Condition != ConditionServiceHealthy || !dict["api"].Restart {
		t.Errorf("api entry = %+v, want {service_healthy true}", dict["api"])
	}
}

func TestExternalResolvedName(t *testing.T) {
	tests := map[string]struct {
		ext      External
		fallback string
		want     string
	}{
		"bool form uses fallback":  {ext: NewExternalFromBool(true), fallback: "net1", want: "net1"},
		"named form uses alias":    {ext: NewExternalFromName("shared-net"), fallback: "net1", want: "shared-net"},
		"disabled still resolves":  {ext: NewExternalFromBool(false), fallback: "net1", want: "net1"},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			if got := test.ext.ResolvedName(test.fallback); got != test.want {
				t.Errorf("ResolvedName() = %q, want %q", got, test.want)
			}
		})
	}
}
