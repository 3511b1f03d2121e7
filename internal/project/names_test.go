package project

import (
	"strings"
	"testing"

	"github.com/netsblox/cloud/internal/apperr"
	"github.com/stretchr/testify/assert"
)

func TestEnsureValidName_Valid(t *testing.T) {
	assert.NoError(t, ensureValidName("MyProject"))
}

func TestEnsureValidName_Empty(t *testing.T) {
	assert.ErrorIs(t, ensureValidName(""), apperr.ErrInvalidName)
}

func TestEnsureValidName_TooLong(t *testing.T) {
	assert.ErrorIs(t, ensureValidName(strings.Repeat("a", maxProjectNameLength+1)), apperr.ErrInvalidName)
}

func TestEnsureValidName_ContainsAt(t *testing.T) {
	assert.ErrorIs(t, ensureValidName("my@project"), apperr.ErrInvalidName)
}

func TestGetUniqueName_FreeBasenameUnchanged(t *testing.T) {
	name := getUniqueName([]string{"Other"}, "MyProject")
	assert.Equal(t, "MyProject", name)
}

func TestGetUniqueName_AppendsCounter(t *testing.T) {
	name := getUniqueName([]string{"MyProject"}, "MyProject")
	assert.Equal(t, "MyProject (2)", name)
}

func TestGetUniqueName_SkipsTakenCounters(t *testing.T) {
	name := getUniqueName([]string{"MyProject", "MyProject (2)", "MyProject (3)"}, "MyProject")
	assert.Equal(t, "MyProject (4)", name)
}
