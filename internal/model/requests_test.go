package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionalTimeJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantSet bool
		want    *time.Time
	}{
		{"absent", `{}`, false, nil},
		{"null", `{"registration_deadline": null}`, true, nil},
		{"value", `{"registration_deadline": "2026-05-01T09:00:00Z"}`, true, ptr(time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req UpdateCompetitionRequest
			require.NoError(t, json.Unmarshal([]byte(tt.body), &req))
			assert.Equal(t, tt.wantSet, req.RegistrationDeadline.Set)
			if tt.want == nil {
				assert.Nil(t, req.RegistrationDeadline.Time)
				return
			}
			require.NotNil(t, req.RegistrationDeadline.Time)
			assert.True(t, tt.want.Equal(*req.RegistrationDeadline.Time))
		})
	}

	var req UpdateCompetitionRequest
	assert.Error(t, json.Unmarshal([]byte(`{"registration_deadline": "tomorrow"}`), &req))
}

func ptr[T any](v T) *T { return &v }
