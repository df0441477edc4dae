package model

import (
	"encoding/json"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupKey(t *testing.T) {
	assert.Equal(t, "HRB400_314", GroupKey("HRB400", 314.159))
	assert.Equal(t, "HRB500_490", GroupKey("HRB500", 490.2))
	assert.Equal(t, "Q235_79", GroupKey("Q235", 78.5))
}

func TestParseGroupKey(t *testing.T) {
	spec, cs := ParseGroupKey("HRB400_314")
	assert.Equal(t, "HRB400", spec)
	assert.Equal(t, 314, cs)

	// Specification containing '_': only the last segment is the cross-section.
	spec, cs = ParseGroupKey("HRB_400E_201")
	assert.Equal(t, "HRB_400E", spec)
	assert.Equal(t, 201, cs)

	spec, cs = ParseGroupKey("nokey")
	assert.Equal(t, "nokey", spec)
	assert.Equal(t, 0, cs)
}

func TestConstraints_Validate(t *testing.T) {
	tests := []struct {
		name    string
		c       Constraints
		wantErr bool
	}{
		{"defaults", DefaultConstraints(), false},
		{"zero threshold", Constraints{WasteThreshold: 0, TimeLimit: 1000, MaxWeldingSegments: 1}, true},
		{"negative threshold", Constraints{WasteThreshold: -5, TimeLimit: 1000, MaxWeldingSegments: 1}, true},
		{"segments below one", Constraints{WasteThreshold: 100, TimeLimit: 1000, MaxWeldingSegments: 0}, true},
		{"zero time limit", Constraints{WasteThreshold: 100, TimeLimit: 0, MaxWeldingSegments: 1}, true},
		{"welding forbidden is legal", Constraints{WasteThreshold: 100, TimeLimit: 1000, MaxWeldingSegments: 1}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.c.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRemainderType_JSON(t *testing.T) {
	data, err := json.Marshal(RemainderReal)
	require.NoError(t, err)
	assert.Equal(t, `"real"`, string(data))

	var rt RemainderType
	require.NoError(t, json.Unmarshal([]byte(`"waste"`), &rt))
	assert.Equal(t, RemainderWaste, rt)
}

func TestRemainder_Clone(t *testing.T) {
	r := Remainder{
		ID:          "HRB400_314_a1",
		Length:      1200,
		Type:        RemainderPending,
		GroupKey:    "HRB400_314",
		SourceChain: []string{"HRB400_314_M1"},
	}

	c := r.Clone()
	c.SourceChain[0] = "changed"
	c.Type = RemainderPseudo

	assert.Equal(t, "HRB400_314_M1", r.SourceChain[0])
	assert.Equal(t, RemainderPending, r.Type)
}

func TestCuttingPlan_DesignLength(t *testing.T) {
	p := CuttingPlan{
		Cuts: []Cut{
			{DesignID: "d1", Length: 6000, Quantity: 2},
			{DesignID: "d2", Length: 3000, Quantity: 1},
		},
	}
	assert.Equal(t, 15000.0, p.DesignLength())
}

func TestCuttingPlan_NewRemainderLength_ExcludesWaste(t *testing.T) {
	p := CuttingPlan{
		NewRemainders: []Remainder{
			{Length: 500, Type: RemainderPending},
			{Length: 50, Type: RemainderWaste},
		},
	}
	assert.Equal(t, 500.0, p.NewRemainderLength())
}

func TestTaskStatus_IsTerminal(t *testing.T) {
	assert.False(t, TaskStatusPending.IsTerminal())
	assert.False(t, TaskStatusRunning.IsTerminal())
	assert.True(t, TaskStatusCompleted.IsTerminal())
	assert.True(t, TaskStatusFailed.IsTerminal())
	assert.True(t, TaskStatusCancelled.IsTerminal())
}

func TestNewTaskID_Format(t *testing.T) {
	id := NewTaskID()
	assert.Regexp(t, regexp.MustCompile(`^task_\d+_\d{6}$`), id)
}

func TestNewTask(t *testing.T) {
	input := &OptimizeRequest{
		DesignSteels: []DesignSteel{{ID: "d1", Length: 6000, Quantity: 2, CrossSection: 314, Specification: "HRB400"}},
		ModuleSteels: []ModuleSteel{{ID: "m1", Length: 12000}},
		Constraints:  DefaultConstraints(),
	}

	task := NewTask(input)
	assert.Equal(t, TaskStatusPending, task.Status)
	assert.Equal(t, 0, task.Progress)
	assert.Same(t, input, task.Input)
	assert.False(t, task.CreatedAt.IsZero())
}
