package reference

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCSV = `Stock Name,Company,Basic Industry,Sector
TCS,Tata Consultancy Services,Computers - Software & Consulting,Information Technology
INFY,Infosys,Computers - Software & Consulting,Information Technology
M&M,Mahindra & Mahindra,Passenger Cars & Utility Vehicles,Automobile and Auto Components
BAJAJ-AUTO,Bajaj Auto,2/3 Wheelers,Automobile and Auto Components
BAJFINANCE,Bajaj Finance,Non Banking Financial Company (NBFC),Financial Services
"DHANI","Dhani Services, Ltd",Financial Technology (Fintech),NA
,Missing Symbol,Unknown,Unknown
tcs,Duplicate lower case,Computers - Software & Consulting,Information Technology
`

func loadSample(t *testing.T) *Resolver {
	t.Helper()
	table, err := ParseTable(strings.NewReader(sampleCSV))
	require.NoError(t, err)
	return NewResolver(table)
}

func TestParseTable(t *testing.T) {
	table, err := ParseTable(strings.NewReader(sampleCSV))
	require.NoError(t, err)

	// Blank symbols are skipped and duplicates collapse onto one entry.
	assert.Equal(t, 6, table.Len())

	dhani, ok := table.Get("dhani")
	require.True(t, ok)
	assert.Equal(t, "Financial Technology (Fintech)", dhani.Industry)
	assert.Equal(t, "", dhani.Sector)

	entries := table.Entries()
	assert.Equal(t, "TCS", entries[0].Symbol)
	assert.Equal(t, "DHANI", entries[5].Symbol)
}

func TestParseTable_AlternateHeaders(t *testing.T) {
	csv := "symbol,industry\nhdfcbank,Banks\n"
	table, err := ParseTable(strings.NewReader(csv))
	require.NoError(t, err)

	e, ok := table.Get("HDFCBANK")
	require.True(t, ok)
	assert.Equal(t, "Banks", e.Industry)
}

func TestParseTable_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "empty input", input: ""},
		{name: "no symbol column", input: "name,industry\nTCS,IT\n"},
		{name: "symbol only", input: "symbol\nTCS\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTable(strings.NewReader(tt.input))
			assert.Error(t, err)
		})
	}
}

func TestResolver_Resolve(t *testing.T) {
	r := loadSample(t)

	assert.Equal(t, "Computers - Software & Consulting", r.Resolve("TCS"))
	assert.Equal(t, r.Resolve("TCS"), r.Resolve("tcs"))
	assert.Equal(t, r.Resolve("Tcs"), r.Resolve(" TCS "))
	assert.Equal(t, OtherLabel, r.Resolve("UNKNOWN"))
}

func TestResolver_Sector(t *testing.T) {
	r := loadSample(t)

	sector, ok := r.Sector("infy")
	assert.True(t, ok)
	assert.Equal(t, "Information Technology", sector)

	_, ok = r.Sector("DHANI")
	assert.False(t, ok, "NA sector is treated as absent")

	_, ok = r.Sector("XYZ")
	assert.False(t, ok)
}

func TestResolver_Degraded(t *testing.T) {
	for _, r := range []*Resolver{NewResolver(nil), nil} {
		assert.Equal(t, OtherLabel, r.Resolve("TCS"))
		assert.Empty(t, r.Suggest("T"))
		_, ok := r.ClosestMatch("TCS")
		assert.False(t, ok)
		_, ok = r.Sector("TCS")
		assert.False(t, ok)
	}
}

func TestResolver_Suggest(t *testing.T) {
	r := loadSample(t)

	assert.Equal(t, []string{"BAJAJ-AUTO", "BAJFINANCE"}, r.Suggest("baj"))
	assert.Equal(t, []string{}, r.Suggest("ZZZ"))
	assert.Equal(t, []string{}, r.Suggest(""))

	var sb strings.Builder
	sb.WriteString("symbol,industry\n")
	for i := 0; i < 15; i++ {
		sb.WriteString("AB")
		sb.WriteByte(byte('A' + i))
		sb.WriteString(",X\n")
	}
	table, err := ParseTable(strings.NewReader(sb.String()))
	require.NoError(t, err)
	got := NewResolver(table).Suggest("AB")
	assert.Len(t, got, MaxSuggestions)
	assert.Equal(t, "ABA", got[0])
}

func TestResolver_ClosestMatch(t *testing.T) {
	r := loadSample(t)

	tests := []struct {
		name   string
		input  string
		want   string
		wantOK bool
	}{
		{name: "exact", input: "infy", want: "INFY", wantOK: true},
		{name: "truncated input", input: "BAJFIN", want: "BAJFINANCE", wantOK: true},
		{name: "input with suffix", input: "TCS.NS", want: "TCS", wantOK: true},
		{name: "punctuation ignored", input: "BAJAJAUTO", want: "BAJAJ-AUTO", wantOK: true},
		{name: "no match", input: "QQQQ", wantOK: false},
		{name: "blank", input: "  ", wantOK: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := r.ClosestMatch(tt.input)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
