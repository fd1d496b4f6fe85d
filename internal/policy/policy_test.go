package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveProject(t *testing.T) {
	tests := []struct {
		name     string
		policy   *Policy
		supplied ProjectRef
		want     string
		wantErr  error
	}{
		{
			name:     "supplied without default",
			policy:   New("", nil, false),
			supplied: ProjectID(42),
			want:     "42",
		},
		{
			name:   "falls back to default",
			policy: New("7", nil, false),
			want:   "7",
		},
		{
			name:     "supplied wins over default",
			policy:   New("7", nil, false),
			supplied: ProjectPath("group/app"),
			want:     "group/app",
		},
		{
			name:    "missing everywhere",
			policy:  New("", nil, false),
			wantErr: ErrMissingProject,
		},
		{
			name:     "allowed by list",
			policy:   New("", []string{"1", "42"}, false),
			supplied: ProjectID(42),
			want:     "42",
		},
		{
			name:     "rejected by list",
			policy:   New("", []string{"1"}, false),
			supplied: ProjectID(42),
			wantErr:  ErrProjectNotAllowed,
		},
		{
			name:    "default is also subject to list",
			policy:  New("9", []string{"1"}, false),
			wantErr: ErrProjectNotAllowed,
		},
		{
			name:     "path compared by string form",
			policy:   New("", []string{"group/app"}, false),
			supplied: ProjectPath("group/app"),
			want:     "group/app",
		},
		{
			name:     "numeric string equals numeric id",
			policy:   New("", []string{" 42 "}, false),
			supplied: ProjectPath("42"),
			want:     "42",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.policy.ResolveProject(tt.supplied)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.True(t, got.IsZero())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestResolveProject_Deterministic(t *testing.T) {
	p := New("7", []string{"7", "8"}, false)
	first, err := p.ResolveProject(ProjectRef{})
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := p.ResolveProject(ProjectRef{})
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestAuthorizeWrite(t *testing.T) {
	readOnly := New("", nil, true)
	assert.ErrorIs(t, readOnly.AuthorizeWrite(Write), ErrReadOnlyMode)
	assert.NoError(t, readOnly.AuthorizeWrite(Read))
	assert.True(t, readOnly.ReadOnly())

	writable := New("", nil, false)
	assert.NoError(t, writable.AuthorizeWrite(Write))
	assert.NoError(t, writable.AuthorizeWrite(Read))
}

func TestIntent_String(t *testing.T) {
	assert.Equal(t, "read", Read.String())
	assert.Equal(t, "write", Write.String())
}
