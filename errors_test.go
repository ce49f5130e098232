package cabinet_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reoring/cabinet"
)

func TestIssue_ErrorAndSentinels(t *testing.T) {
	cause := errors.New("socket closed")
	it := cabinet.Issue{Path: "/flights", Code: cabinet.CodeConstruction, Type: `\Travel\Flight`, Message: "construction failed", Cause: cause}

	assert.Equal(t, `construction_failed at /flights (\Travel\Flight): construction failed: socket closed`, it.Error())
	assert.ErrorIs(t, it, cabinet.ErrConstruction)
	assert.ErrorIs(t, it, cause)
	assert.NotErrorIs(t, it, cabinet.ErrUnknownField)

	wrapped := fmt.Errorf("hydrate: %w", it)
	assert.ErrorIs(t, wrapped, cabinet.ErrConstruction)
}

func TestIssues_AggregateAndUnwrap(t *testing.T) {
	var iss cabinet.Issues
	iss = cabinet.AppendIssues(iss,
		cabinet.Issue{Path: "/a", Code: cabinet.CodeUnknownField},
		cabinet.Issue{Path: "/b", Code: cabinet.CodeInvalidDefinition},
	)
	require.Len(t, iss, 2)
	assert.Equal(t, "unknown_field at /a; invalid_definition at /b", iss.Error())
	assert.ErrorIs(t, iss, cabinet.ErrUnknownField)
	assert.ErrorIs(t, iss, cabinet.ErrInvalidDefinition)

	got, ok := cabinet.AsIssues(fmt.Errorf("wrap: %w", iss))
	require.True(t, ok)
	assert.Len(t, got, 2)

	many := cabinet.Issues{}
	for i := 0; i < 5; i++ {
		many = cabinet.AppendIssues(many, cabinet.Issue{Path: fmt.Sprintf("/%d", i), Code: cabinet.CodeParseError})
	}
	assert.Contains(t, many.Error(), "(total 5)")

	_, ok = cabinet.AsIssues(errors.New("plain"))
	assert.False(t, ok)
	_, ok = cabinet.AsIssues(nil)
	assert.False(t, ok)
}
