package issue

import (
	"encoding/json"
	"testing"
)

func TestStatusRoundTrip(t *testing.T) {
	cases := []Status{
		StatusOpen, StatusInProgress, StatusBlocked, StatusDeferred,
		StatusClosed, StatusTombstone, CustomStatus("triaging"),
	}
	for _, want := range cases {
		data, err := json.Marshal(want)
		if err != nil {
			t.Fatalf("Marshal(%v): %v", want, err)
		}
		var got Status
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("Unmarshal(%s): %v", data, err)
		}
		if got != want {
			t.Errorf("round trip %v: got %v", want, got)
		}
	}
}

func TestStatusIsClosed(t *testing.T) {
	if !StatusClosed.IsClosed() {
		t.Error("StatusClosed.IsClosed() = false, want true")
	}
	if !StatusTombstone.IsClosed() {
		t.Error("StatusTombstone.IsClosed() = false, want true")
	}
	if StatusOpen.IsClosed() {
		t.Error("StatusOpen.IsClosed() = true, want false")
	}
}

func TestParsePriority(t *testing.T) {
	cases := []struct {
		in   string
		want Priority
	}{
		{"0", PriorityCritical},
		{"critical", PriorityCritical},
		{"2", PriorityMedium},
		{"", PriorityMedium},
		{"4", PriorityBacklog},
	}
	for _, c := range cases {
		got, err := ParsePriority(c.in)
		if err != nil {
			t.Errorf("ParsePriority(%q): %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("ParsePriority(%q) = %v, want %v", c.in, got, c.want)
		}
	}
	if _, err := ParsePriority("9"); err == nil {
		t.Error("ParsePriority(\"9\") succeeded, want error")
	}
}

func TestIssueValidate(t *testing.T) {
	valid := &Issue{Title: "fix thing", Priority: PriorityMedium, Status: StatusOpen}
	if err := valid.Validate(); err != nil {
		t.Errorf("Validate() on valid issue: %v", err)
	}

	empty := &Issue{Title: "   ", Priority: PriorityMedium}
	if err := empty.Validate(); err != ErrEmptyTitle {
		t.Errorf("Validate() empty title = %v, want ErrEmptyTitle", err)
	}

	badPriority := &Issue{Title: "x", Priority: Priority(9)}
	if err := badPriority.Validate(); err == nil {
		t.Error("Validate() bad priority succeeded, want error")
	}
}

func TestIssueClone(t *testing.T) {
	due := int64(100)
	original := &Issue{
		ID:           "bd-1",
		Title:        "t",
		Labels:       []string{"a", "b"},
		Dependencies: []Dependency{{DependsOnID: "bd-2", DepType: DepBlocks}},
		DueAt:        &due,
	}
	clone := original.Clone()
	clone.Labels[0] = "z"
	clone.Dependencies[0].DependsOnID = "bd-9"
	*clone.DueAt = 200

	if original.Labels[0] != "a" {
		t.Error("Clone aliased Labels slice")
	}
	if original.Dependencies[0].DependsOnID != "bd-2" {
		t.Error("Clone aliased Dependencies slice")
	}
	if *original.DueAt != 100 {
		t.Error("Clone aliased DueAt pointer")
	}
}

func TestDependencyIDs(t *testing.T) {
	iss := &Issue{
		Dependencies: []Dependency{
			{DependsOnID: "a", DepType: DepBlocks},
			{DependsOnID: "b", DepType: DepRelated},
		},
	}
	blocks := DepBlocks
	ids := iss.DependencyIDs(&blocks)
	if len(ids) != 1 || ids[0] != "a" {
		t.Errorf("DependencyIDs(blocks) = %v, want [a]", ids)
	}
	all := iss.DependencyIDs(nil)
	if len(all) != 2 {
		t.Errorf("DependencyIDs(nil) = %v, want 2 entries", all)
	}
}
