package deployment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestApplication_ShouldLaunch covers the launch precondition.
func TestApplication_ShouldLaunch(t *testing.T) {
	t.Parallel()

	require.False(t, NewApplication(nil).ShouldLaunch())

	app := &Application{Latest: &Metadata{Version: "1.0.0"}}
	require.True(t, app.ShouldLaunch())

	app.Current = &Metadata{Version: "1.0.0", ProcessID: 42}
	require.True(t, app.IsSameVersion())
	require.False(t, app.ShouldLaunch())

	app.Latest = &Metadata{Version: "2.0.0"}
	require.False(t, app.IsSameVersion())
	require.True(t, app.ShouldLaunch())
}

// TestMetadata_Copies ensures With helpers never mutate the receiver.
func TestMetadata_Copies(t *testing.T) {
	t.Parallel()

	m := &Metadata{Version: "1.0.0"}
	located := m.WithArtifactLocation("/tmp/a.jar")
	launched := located.WithProcessID(7)

	require.Empty(t, m.ArtifactLocation)
	require.Zero(t, located.ProcessID)
	require.Equal(t, "/tmp/a.jar", launched.ArtifactLocation)
	require.Equal(t, 7, launched.ProcessID)
	require.True(t, m.SameVersion(launched))
}

// TestParseHealthStatus checks that only UP is up.
func TestParseHealthStatus(t *testing.T) {
	t.Parallel()

	require.Equal(t, HealthUp, ParseHealthStatus("UP"))
	require.Equal(t, HealthUp, ParseHealthStatus(" up "))
	require.Equal(t, HealthDown, ParseHealthStatus("OUT_OF_SERVICE"))
	require.Equal(t, HealthDown, ParseHealthStatus(""))
	require.Equal(t, "UNKNOWN", HealthUnknown.String())
}

// TestSignerKey_Expiry checks the derived expiry time.
func TestSignerKey_Expiry(t *testing.T) {
	t.Parallel()

	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	key := SignerKey{Fingerprint: []byte{0xab, 0x01}, CreationTime: created, ValiditySeconds: 3600}

	require.True(t, key.Expires())
	require.Equal(t, created.Add(time.Hour), key.ExpiryTime())
	require.Equal(t, "AB01", key.FingerprintHex())
	require.False(t, SignerKey{CreationTime: created}.Expires())
}

// TestBlocklist expires entries and ignores adds when disabled.
func TestBlocklist(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	b := NewBlocklist(time.Hour, clock)
	until := b.Add("2.0.0")

	require.Equal(t, now.Add(time.Hour), until)
	require.True(t, b.Contains("2.0.0"))
	require.False(t, b.Contains("1.0.0"))

	now = now.Add(2 * time.Hour)
	require.False(t, b.Contains("2.0.0"))
	require.Empty(t, b.Entries())

	b.Restore(map[string]time.Time{"old": now.Add(-time.Minute), "fresh": now.Add(time.Minute)})
	require.Equal(t, []string{"fresh"}, keys(b.Entries()))

	disabled := NewBlocklist(0, clock)
	require.True(t, disabled.Add("2.0.0").IsZero())
	require.False(t, disabled.Contains("2.0.0"))
}

func keys(m map[string]time.Time) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}

	return out
}
