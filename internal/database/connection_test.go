package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectionString(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "url without query",
			raw:  "postgres://u:p@db:5432/app",
			want: "postgres://u:p@db:5432/app?binary_parameters=yes",
		},
		{
			name: "url drops pgx setting",
			raw:  "postgres://u:p@db:5432/app?sslmode=disable&prefer_simple_protocol=true",
			want: "postgres://u:p@db:5432/app?binary_parameters=yes&sslmode=disable",
		},
		{
			name: "url keeps explicit binary_parameters",
			raw:  "postgresql://u:p@db/app?binary_parameters=no",
			want: "postgresql://u:p@db/app?binary_parameters=no",
		},
		{
			name: "key value drops pgx setting",
			raw:  "host=db dbname=app prefer_simple_protocol=true",
			want: "host=db dbname=app binary_parameters=yes",
		},
		{
			name: "key value leading pgx setting",
			raw:  "prefer_simple_protocol=true host=db",
			want: "host=db binary_parameters=yes",
		},
		{
			name: "key value keeps explicit binary_parameters",
			raw:  "host=db binary_parameters=no",
			want: "host=db binary_parameters=no",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := connectionString(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.NotContains(t, got, "prefer_simple_protocol")
		})
	}
}

func TestConnectionString_InvalidURL(t *testing.T) {
	_, err := connectionString("postgres://%zz/app")
	assert.Error(t, err)
}
