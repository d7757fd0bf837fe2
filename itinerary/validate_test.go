package itinerary

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestValidate(t *testing.T) {
	valid := func() Request {
		return Request{Destinations: []string{"Kyoto"}, Days: 3}
	}

	tests := []struct {
		name    string
		mutate  func(r *Request)
		wantErr bool
	}{
		{name: "minimal", mutate: func(*Request) {}},
		{name: "no destinations", mutate: func(r *Request) { r.Destinations = nil }, wantErr: true},
		{name: "blank destination", mutate: func(r *Request) { r.Destinations = []string{""} }, wantErr: true},
		{name: "zero days", mutate: func(r *Request) { r.Days = 0 }, wantErr: true},
		{name: "too many days", mutate: func(r *Request) { r.Days = 31 }, wantErr: true},
		{name: "unknown strategy", mutate: func(r *Request) { r.Strategy = "lottery" }, wantErr: true},
		{name: "known strategy", mutate: func(r *Request) { r.Strategy = "cross-review" }},
		{name: "unknown pace", mutate: func(r *Request) { r.Pace = "sprint" }, wantErr: true},
		{
			name: "override inside trip",
			mutate: func(r *Request) {
				r.TransitOverrides = map[int]Transit{2: {Mode: ModeTrain}}
			},
		},
		{
			name: "override outside trip",
			mutate: func(r *Request) {
				r.TransitOverrides = map[int]Transit{4: {Mode: ModeTrain}}
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := valid()
			tt.mutate(&r)
			err := r.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidRequest)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestEntitlementGrantsPremium(t *testing.T) {
	assert.False(t, EntitlementStatus{Tier: "free"}.GrantsPremium())
	assert.False(t, EntitlementStatus{Tier: "premium", HasAccess: true, Remaining: 0}.GrantsPremium())
	assert.True(t, EntitlementStatus{Tier: "premium", HasAccess: true, Remaining: 2}.GrantsPremium())
	assert.True(t, EntitlementStatus{Tier: "pro", HasAccess: true, IsUnlimited: true}.GrantsPremium())
}
