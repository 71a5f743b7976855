package pool

import (
	"errors"
	"testing"

	"github.com/bnema/omapdss/internal/logger"
	"github.com/bnema/omapdss/internal/sysfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// threeManagerLayout is one framebuffer, three overlays and the lcd, 2lcd
// and tv managers, each driving a display of the same name.
func threeManagerLayout() sysfs.Layout {
	return sysfs.Layout{
		Framebuffers: 1,
		Overlays:     3,
		Managers: []sysfs.ManagerSpec{
			{Name: "lcd", Display: "lcd"},
			{Name: "2lcd", Display: "2lcd"},
			{Name: "tv", Display: "tv"},
		},
	}
}

func newTestPool(t *testing.T, layout sysfs.Layout, opts Options) (*Pool, *sysfs.FS, *sysfs.Recorder) {
	t.Helper()
	acc, err := sysfs.NewMemory(layout)
	require.NoError(t, err)

	rec := sysfs.NewRecorder(acc)
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}
	p, err := New(rec, opts)
	require.NoError(t, err)
	rec.Reset()
	return p, acc, rec
}

func readAttr(t *testing.T, acc sysfs.Accessor, kind sysfs.Kind, index int, entry string) string {
	t.Helper()
	v, err := acc.Read(kind, index, entry)
	require.NoError(t, err)
	return v
}

func readFB(t *testing.T, acc sysfs.Accessor, fb int) string {
	t.Helper()
	v, err := acc.ReadFramebuffer(fb, sysfs.EntryOverlays)
	require.NoError(t, err)
	return v
}

func TestNewDiscoversCleanState(t *testing.T) {
	layout := sysfs.OMAP4Layout()
	acc, err := sysfs.NewMemory(layout)
	require.NoError(t, err)

	// Leftovers from a previous run
	require.NoError(t, acc.Write(sysfs.KindOverlay, 1, sysfs.EntryEnabled, "1"))
	require.NoError(t, acc.Write(sysfs.KindOverlay, 1, sysfs.EntryManager, "tv"))
	require.NoError(t, acc.WriteFramebuffer(0, sysfs.EntryOverlays, "0,1"))

	p, err := New(acc, Options{Logger: logger.Discard()})
	require.NoError(t, err)

	assert.Equal(t, 3, p.Framebuffers())
	assert.Equal(t, 4, p.Overlays())
	require.Len(t, p.Managers(), 3)
	assert.Equal(t, Manager{Index: 2, Name: "tv", Display: "hdmi"}, p.Managers()[2])

	for i := 0; i < p.Overlays(); i++ {
		ov, err := p.Overlay(i)
		require.NoError(t, err)
		assert.Equal(t, Unbound, ov.State, "overlay %d", i)
		assert.False(t, ov.Dirty, "overlay %d", i)
		assert.Nil(t, ov.Staged, "overlay %d", i)
		assert.Nil(t, ov.Committed, "overlay %d", i)

		assert.Equal(t, "0", readAttr(t, acc, sysfs.KindOverlay, i, sysfs.EntryEnabled))
		assert.Equal(t, "", readAttr(t, acc, sysfs.KindOverlay, i, sysfs.EntryManager))
	}
	for fb := 0; fb < p.Framebuffers(); fb++ {
		assert.Equal(t, "", readFB(t, acc, fb))
	}
	assert.False(t, p.Dirty())
}

func TestNewDiscoveryIncomplete(t *testing.T) {
	tests := []struct {
		name   string
		layout sysfs.Layout
		opts   Options
	}{
		{
			name:   "no overlays",
			layout: sysfs.Layout{Framebuffers: 1, Managers: []sysfs.ManagerSpec{{Name: "lcd", Display: "lcd"}}},
		},
		{
			name:   "no managers",
			layout: sysfs.Layout{Framebuffers: 1, Overlays: 2},
		},
		{
			name:   "no framebuffers",
			layout: sysfs.Layout{Overlays: 2, Managers: []sysfs.ManagerSpec{{Name: "lcd", Display: "lcd"}}},
		},
		{
			name:   "fewer overlays than expected",
			layout: threeManagerLayout(),
			opts:   Options{ExpectOverlays: 4},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acc, err := sysfs.NewMemory(tt.layout)
			require.NoError(t, err)

			tt.opts.Logger = logger.Discard()
			_, err = New(acc, tt.opts)
			assert.True(t, errors.Is(err, ErrDiscoveryIncomplete), "got %v", err)
		})
	}
}

func TestNewRespectsLimits(t *testing.T) {
	p, _, _ := newTestPool(t, sysfs.OMAP4Layout(), Options{
		MaxFramebuffers: 1,
		MaxOverlays:     2,
		MaxManagers:     1,
	})

	assert.Equal(t, 1, p.Framebuffers())
	assert.Equal(t, 2, p.Overlays())
	assert.Len(t, p.Managers(), 1)
}

func TestFreeOverlayFirstFit(t *testing.T) {
	p, _, _ := newTestPool(t, threeManagerLayout(), Options{})

	ov, err := p.FreeOverlay()
	require.NoError(t, err)
	assert.Equal(t, 0, ov)

	require.NoError(t, p.Connect(0, 0, "lcd"))
	require.NoError(t, p.Connect(0, 2, "tv"))

	ov, err = p.FreeOverlay()
	require.NoError(t, err)
	assert.Equal(t, 1, ov, "lowest index without a manager")

	require.NoError(t, p.Connect(0, 1, "2lcd"))
	_, err = p.FreeOverlay()
	assert.True(t, errors.Is(err, ErrNoOverlaysFree))

	require.NoError(t, p.Disconnect("lcd"))
	ov, err = p.FreeOverlay()
	require.NoError(t, err)
	assert.Equal(t, 0, ov)
}

func TestConnectVisibleOnlyAfterApply(t *testing.T) {
	p, _, rec := newTestPool(t, threeManagerLayout(), Options{})

	require.NoError(t, p.Connect(0, 0, "lcd"))
	assert.False(t, p.IsDisplayConnected("lcd"))
	assert.Empty(t, rec.Writes(), "connect must not touch the device")

	ov, err := p.Overlay(0)
	require.NoError(t, err)
	assert.Equal(t, PendingBind, ov.State)

	_, err = p.Apply()
	require.NoError(t, err)
	assert.True(t, p.IsDisplayConnected("lcd"))
	assert.False(t, p.IsDisplayConnected("tv"))

	ov, err = p.Overlay(0)
	require.NoError(t, err)
	assert.Equal(t, Bound, ov.State)
	assert.Equal(t, &Binding{Framebuffer: 0, Manager: 0}, ov.Committed)
}

func TestConnectDisconnectUnderOneApply(t *testing.T) {
	p, acc, rec := newTestPool(t, threeManagerLayout(), Options{})

	snapshot := func() []string {
		var out []string
		for i := 0; i < p.Overlays(); i++ {
			out = append(out,
				readAttr(t, acc, sysfs.KindOverlay, i, sysfs.EntryEnabled),
				readAttr(t, acc, sysfs.KindOverlay, i, sysfs.EntryManager))
		}
		return append(out, readFB(t, acc, 0))
	}
	before := snapshot()

	require.NoError(t, p.Connect(0, 1, "tv"))
	require.NoError(t, p.Disconnect("tv"))
	assert.True(t, p.Plan().Empty())

	report, err := p.Apply()
	require.NoError(t, err)
	assert.Empty(t, report.Results)
	assert.Empty(t, rec.Writes())
	assert.Equal(t, before, snapshot())
	assert.False(t, p.IsDisplayConnected("tv"))
}

func TestDisconnectRetargetedOverlayKeepsBinding(t *testing.T) {
	p, acc, rec := newTestPool(t, threeManagerLayout(), Options{})

	require.NoError(t, p.Connect(0, 0, "lcd"))
	_, err := p.Apply()
	require.NoError(t, err)
	rec.Reset()

	// Point lcd's overlay at tv, then change our mind
	require.NoError(t, p.Connect(0, 0, "tv"))
	require.NoError(t, p.Disconnect("tv"))
	assert.True(t, p.Plan().Empty())
	assert.False(t, p.Dirty())

	_, err = p.Apply()
	require.NoError(t, err)
	assert.Empty(t, rec.Writes())

	assert.True(t, p.IsDisplayConnected("lcd"))
	assert.False(t, p.IsDisplayConnected("tv"))
	assert.Equal(t, "lcd", readAttr(t, acc, sysfs.KindOverlay, 0, sysfs.EntryManager))
	assert.Equal(t, "1", readAttr(t, acc, sysfs.KindOverlay, 0, sysfs.EntryEnabled))

	ov, err := p.Overlay(0)
	require.NoError(t, err)
	assert.Equal(t, Bound, ov.State)
	overlay, ok := p.OverlayForDisplay("lcd")
	require.True(t, ok)
	assert.Equal(t, 0, overlay)
}

func TestRestoreDiscardsStagedChanges(t *testing.T) {
	p, _, rec := newTestPool(t, threeManagerLayout(), Options{})

	require.NoError(t, p.Connect(0, 0, "lcd"))
	_, err := p.Apply()
	require.NoError(t, err)
	rec.Reset()

	// Move lcd to overlay 2 and stage tv, then roll back lcd only
	require.NoError(t, p.Disconnect("lcd"))
	require.NoError(t, p.Connect(0, 2, "lcd"))
	require.NoError(t, p.Connect(0, 1, "tv"))
	require.NoError(t, p.Restore("lcd"))

	ov0, _ := p.Overlay(0)
	assert.Equal(t, Bound, ov0.State)
	ov2, _ := p.Overlay(2)
	assert.Equal(t, Unbound, ov2.State)
	ov1, _ := p.Overlay(1)
	assert.Equal(t, PendingBind, ov1.State)

	_, err = p.Apply()
	require.NoError(t, err)
	assert.Less(t, rec.IndexOf("overlay0/enabled", "0"), 0)
	assert.True(t, p.IsDisplayConnected("lcd"))
	assert.True(t, p.IsDisplayConnected("tv"))

	assert.True(t, errors.Is(p.Restore("dvi"), ErrNoSuchManager))
}

func TestApplyTearsDownBeforeSetup(t *testing.T) {
	p, _, rec := newTestPool(t, threeManagerLayout(), Options{})

	// Overlay 0 drives lcd
	require.NoError(t, p.Connect(0, 0, "lcd"))
	_, err := p.Apply()
	require.NoError(t, err)
	rec.Reset()

	// Move lcd from overlay 0 to overlay 2 in one cycle
	require.NoError(t, p.Disconnect("lcd"))
	require.NoError(t, p.Connect(0, 2, "lcd"))

	plan := p.Plan()
	_, err = p.Apply()
	require.NoError(t, err)

	teardown := rec.IndexOf("overlay0/enabled", "0")
	setup := rec.IndexOf("overlay2/manager", "lcd")
	require.GreaterOrEqual(t, teardown, 0)
	require.GreaterOrEqual(t, setup, 0)
	assert.Less(t, teardown, setup)

	// Every teardown write precedes every setup write
	writes := rec.Writes()
	require.Len(t, writes, len(plan.Operations))
	lastTeardown := len(plan.Phase(PhaseTeardown)) - 1
	for i, op := range plan.Operations {
		assert.Equal(t, op.Target(), writes[i].Target())
		if op.Phase == PhaseSetup {
			assert.Greater(t, i, lastTeardown)
		}
	}

	assert.True(t, p.IsDisplayConnected("lcd"))
	ov0, _ := p.Overlay(0)
	assert.Equal(t, Unbound, ov0.State)
	ov2, _ := p.Overlay(2)
	assert.Equal(t, Bound, ov2.State)
}

func TestConnectUnknownDisplay(t *testing.T) {
	p, _, rec := newTestPool(t, threeManagerLayout(), Options{})
	require.NoError(t, p.Connect(0, 0, "lcd"))
	before := p.Snapshot()

	err := p.Connect(0, 1, "dvi")
	assert.True(t, errors.Is(err, ErrNoSuchManager))
	assert.Equal(t, before, p.Snapshot())
	assert.Empty(t, rec.Writes())

	assert.True(t, errors.Is(p.Disconnect("dvi"), ErrNoSuchManager))
	assert.False(t, p.IsDisplayConnected("dvi"))
}

func TestConnectRejectsOutOfRange(t *testing.T) {
	p, _, _ := newTestPool(t, threeManagerLayout(), Options{})

	assert.True(t, errors.Is(p.Connect(0, 3, "lcd"), ErrInvalidOverlay))
	assert.True(t, errors.Is(p.Connect(0, -1, "lcd"), ErrInvalidOverlay))
	assert.True(t, errors.Is(p.Connect(1, 0, "lcd"), ErrInvalidFramebuffer))
	assert.False(t, p.Dirty())
}

func TestDisconnectWithoutOverlay(t *testing.T) {
	p, _, _ := newTestPool(t, threeManagerLayout(), Options{})

	err := p.Disconnect("tv")
	assert.True(t, errors.Is(err, ErrNoOverlayForDisplay))
}

func TestDisconnectPicksHighestOverlay(t *testing.T) {
	p, _, _ := newTestPool(t, threeManagerLayout(), Options{})

	require.NoError(t, p.Connect(0, 0, "lcd"))
	require.NoError(t, p.Connect(0, 1, "lcd"))
	require.NoError(t, p.Disconnect("lcd"))

	ov0, _ := p.Overlay(0)
	ov1, _ := p.Overlay(1)
	assert.NotNil(t, ov0.Staged)
	assert.Nil(t, ov1.Staged)

	idx, ok := p.OverlayForDisplay("lcd")
	assert.True(t, ok)
	assert.Equal(t, 0, idx)
}

func TestLcdAndTvScenario(t *testing.T) {
	p, acc, _ := newTestPool(t, threeManagerLayout(), Options{})

	require.NoError(t, p.Connect(0, 0, "lcd"))
	require.NoError(t, p.Connect(0, 1, "tv"))

	report, err := p.Apply()
	require.NoError(t, err)
	assert.True(t, report.OK())
	assert.Len(t, report.Results, 2)

	assert.Equal(t, "1", readAttr(t, acc, sysfs.KindOverlay, 0, sysfs.EntryEnabled))
	assert.Equal(t, "lcd", readAttr(t, acc, sysfs.KindOverlay, 0, sysfs.EntryManager))
	assert.Equal(t, "1", readAttr(t, acc, sysfs.KindOverlay, 1, sysfs.EntryEnabled))
	assert.Equal(t, "tv", readAttr(t, acc, sysfs.KindOverlay, 1, sysfs.EntryManager))
	assert.Equal(t, "0", readAttr(t, acc, sysfs.KindOverlay, 2, sysfs.EntryEnabled))
	assert.Equal(t, "0,1", readFB(t, acc, 0))

	assert.True(t, p.IsDisplayConnected("lcd"))
	assert.True(t, p.IsDisplayConnected("tv"))
	assert.False(t, p.IsDisplayConnected("2lcd"))
}

func TestTeardownRewritesFramebufferList(t *testing.T) {
	p, acc, _ := newTestPool(t, threeManagerLayout(), Options{})

	require.NoError(t, p.Connect(0, 0, "lcd"))
	require.NoError(t, p.Connect(0, 1, "tv"))
	_, err := p.Apply()
	require.NoError(t, err)

	require.NoError(t, p.Disconnect("tv"))
	ov, _ := p.Overlay(1)
	assert.Equal(t, PendingUnbind, ov.State)
	assert.True(t, p.IsDisplayConnected("tv"), "still live until applied")

	_, err = p.Apply()
	require.NoError(t, err)

	assert.Equal(t, "0", readFB(t, acc, 0))
	assert.Equal(t, "0", readAttr(t, acc, sysfs.KindOverlay, 1, sysfs.EntryEnabled))
	assert.Equal(t, "1", readAttr(t, acc, sysfs.KindOverlay, 0, sysfs.EntryEnabled))
	assert.False(t, p.IsDisplayConnected("tv"))
	assert.True(t, p.IsDisplayConnected("lcd"))
}

func TestNameMatching(t *testing.T) {
	layout := sysfs.Layout{
		Framebuffers: 1,
		Overlays:     2,
		Managers:     []sysfs.ManagerSpec{{Name: "lcd", Display: "lcd2"}},
	}

	exact, _, _ := newTestPool(t, layout, Options{})
	assert.True(t, errors.Is(exact.Connect(0, 0, "lcd"), ErrNoSuchManager))
	assert.NoError(t, exact.Connect(0, 0, "lcd2"))

	prefix, _, _ := newTestPool(t, layout, Options{NameMatch: MatchPrefix})
	assert.NoError(t, prefix.Connect(0, 0, "lcd"))

	m, err := prefix.ManagerForDisplay("lcd")
	require.NoError(t, err)
	assert.Equal(t, "lcd", m.Name)
}

func TestParseNameMatch(t *testing.T) {
	m, err := ParseNameMatch("")
	require.NoError(t, err)
	assert.Equal(t, MatchExact, m)

	m, err = ParseNameMatch("Prefix")
	require.NoError(t, err)
	assert.Equal(t, MatchPrefix, m)

	_, err = ParseNameMatch("fuzzy")
	assert.Error(t, err)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "unbound", Unbound.String())
	assert.Equal(t, "pending-bind", PendingBind.String())
	assert.Equal(t, "bound", Bound.String())
	assert.Equal(t, "pending-unbind", PendingUnbind.String())
}
