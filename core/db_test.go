package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseOrderings(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []DBOrdering
	}{
		{name: "empty", in: ""},
		{name: "one asc", in: "candidate", want: []DBOrdering{{Field: "candidate", Ascending: true}}},
		{
			name: "many",
			in:   " -started_at, status ,,-",
			want: []DBOrdering{{Field: "started_at"}, {Field: "status", Ascending: true}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseOrderings(tt.in))
		})
	}
}

func TestFilterOrderings(t *testing.T) {
	orderings := ParseOrderings("-started_at,password,status")
	got := FilterOrderings(orderings, "started_at", "status")
	assert.Equal(t, []DBOrdering{{Field: "started_at"}, {Field: "status", Ascending: true}}, got)
	assert.Equal(t, "started_at DESC", got[0].String())
	assert.Equal(t, "status ASC", got[1].String())
}
