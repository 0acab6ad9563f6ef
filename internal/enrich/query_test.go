package enrich

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildQuery(t *testing.T) {
	tests := []struct {
		name    string
		station string
		address string
		region  string
		want    string
	}{
		{
			name:    "name and address",
			station: "Texaco Spanish Town",
			address: "Main St",
			region:  "Jamaica",
			want:    "Texaco Spanish Town Main St Jamaica",
		},
		{
			name:    "empty address falls back to region-scoped name",
			station: "Rubis Half Way Tree",
			address: "",
			region:  "Jamaica",
			want:    "Rubis Half Way Tree Jamaica",
		},
		{
			name:    "whitespace collapsed",
			station: "  Shell   Station  ",
			address: " 12   Constant Spring Rd ",
			region:  "Jamaica",
			want:    "Shell Station 12 Constant Spring Rd Jamaica",
		},
		{
			name:    "region not duplicated when present in address",
			station: "Total Portmore",
			address: "Portmore, Jamaica",
			region:  "Jamaica",
			want:    "Total Portmore Portmore, Jamaica",
		},
		{
			name:    "no region configured",
			station: "Epping Farm",
			address: "",
			region:  "",
			want:    "Epping Farm",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildQuery(tt.station, tt.address, tt.region))
		})
	}
}

func TestBuildQuery_Deterministic(t *testing.T) {
	a := BuildQuery("Texaco Spanish Town", "Main St", "Jamaica")
	b := BuildQuery("Texaco Spanish Town", "Main St", "Jamaica")
	assert.Equal(t, a, b)
}
