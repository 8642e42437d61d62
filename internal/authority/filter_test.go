package authority

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzbill/gdid/pkg/gdid"
)

func TestInfoFilter(t *testing.T) {
	infos := []gdid.SequenceInfo{
		{Scope: "billing", Sequence: "invoice", Era: 0, ApproximateCurrentValue: 110, TotalPreallocation: 10, IssuerName: "a1"},
		{Scope: "billing", Sequence: "credit", Era: 2, ApproximateCurrentValue: 5, TotalPreallocation: 5, IssuerName: "a1"},
		{Scope: "shipping", Sequence: "parcel", Era: 0, ApproximateCurrentValue: 3, TotalPreallocation: 3, IssuerName: "a2",
			IssueUtcDate: time.UnixMilli(5000)},
	}

	tests := []struct {
		expr string
		want []string
	}{
		{"", []string{"invoice", "credit", "parcel"}},
		{"era > 0 && remaining == 0", []string{"credit"}},
		{`scope.startsWith("bill") && current >= 100`, []string{"invoice"}},
		{`issuer == "a2"`, []string{"parcel"}},
		{"issued_ms == 5000", []string{"parcel"}},
		{"total > 100", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			f, err := NewInfoFilter(tt.expr)
			require.NoError(t, err)
			got, err := f.Apply(infos)
			require.NoError(t, err)
			names := []string{}
			for _, i := range got {
				names = append(names, i.Sequence)
			}
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestInfoFilterRejectsBadExpressions(t *testing.T) {
	for _, expr := range []string{"era >", "era + 1", "unknown_var == 1"} {
		_, err := NewInfoFilter(expr)
		assert.Error(t, err, expr)
	}
}

func TestNilInfoFilterMatches(t *testing.T) {
	var f *InfoFilter
	ok, err := f.Match(gdid.SequenceInfo{})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "", f.String())
}
