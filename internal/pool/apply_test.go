package pool

import (
	"errors"
	"testing"

	"github.com/bnema/omapdss/internal/logger"
	"github.com/bnema/omapdss/internal/sysfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errInjected = errors.New("injected write failure")

// failingAccessor fails the writes matched by fail
type failingAccessor struct {
	sysfs.Accessor
	fail func(kind sysfs.Kind, index int, entry, value string) bool
}

func (f *failingAccessor) Write(kind sysfs.Kind, index int, entry, value string) error {
	if f.fail != nil && f.fail(kind, index, entry, value) {
		return errInjected
	}
	return f.Accessor.Write(kind, index, entry, value)
}

func newFailingPool(t *testing.T) (*Pool, *failingAccessor, *sysfs.FS) {
	t.Helper()
	acc, err := sysfs.NewMemory(threeManagerLayout())
	require.NoError(t, err)

	fa := &failingAccessor{Accessor: acc}
	p, err := New(fa, Options{Logger: logger.Discard()})
	require.NoError(t, err)
	return p, fa, acc
}

func TestApplyReportsSetupFailure(t *testing.T) {
	p, fa, acc := newFailingPool(t)
	fa.fail = func(kind sysfs.Kind, index int, entry, value string) bool {
		return kind == sysfs.KindOverlay && index == 1 && entry == sysfs.EntryManager && value != ""
	}

	require.NoError(t, p.Connect(0, 0, "lcd"))
	require.NoError(t, p.Connect(0, 1, "tv"))

	report, err := p.Apply()
	require.Error(t, err)
	assert.True(t, errors.Is(err, errInjected))
	assert.False(t, report.OK())

	failed := report.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, 1, failed[0].Overlay)

	var opErr *OpError
	require.True(t, errors.As(failed[0].Err(), &opErr))
	assert.Equal(t, PhaseSetup, opErr.Op.Phase)
	assert.Equal(t, "overlay1/manager", opErr.Op.Target())

	// The failed overlay is never enabled and ends up unbound
	assert.Equal(t, "0", readAttr(t, acc, sysfs.KindOverlay, 1, sysfs.EntryEnabled))
	assert.Equal(t, "0", readFB(t, acc, 0))
	ov, err := p.Overlay(1)
	require.NoError(t, err)
	assert.Equal(t, Unbound, ov.State)
	assert.Nil(t, ov.Staged)
	assert.Nil(t, ov.Committed)

	assert.True(t, p.IsDisplayConnected("lcd"))
	assert.False(t, p.IsDisplayConnected("tv"))
	assert.False(t, p.Dirty())

	free, err := p.FreeOverlay()
	require.NoError(t, err)
	assert.Equal(t, 1, free)
}

func TestApplyRollsBackFailedEnable(t *testing.T) {
	p, fa, acc := newFailingPool(t)
	fa.fail = func(kind sysfs.Kind, index int, entry, value string) bool {
		return kind == sysfs.KindOverlay && index == 1 && entry == sysfs.EntryEnabled && value == "1"
	}

	require.NoError(t, p.Connect(0, 0, "lcd"))
	require.NoError(t, p.Connect(0, 1, "tv"))

	report, err := p.Apply()
	require.Error(t, err)
	require.Len(t, report.Failed(), 1)
	assert.Equal(t, 1, report.Failed()[0].Overlay)

	// The manager and framebuffer writes had landed; they are undone
	assert.Equal(t, "0", readAttr(t, acc, sysfs.KindOverlay, 1, sysfs.EntryEnabled))
	assert.Equal(t, "", readAttr(t, acc, sysfs.KindOverlay, 1, sysfs.EntryManager))
	assert.Equal(t, "0", readFB(t, acc, 0))

	assert.Equal(t, "lcd", readAttr(t, acc, sysfs.KindOverlay, 0, sysfs.EntryManager))
	assert.Equal(t, "1", readAttr(t, acc, sysfs.KindOverlay, 0, sysfs.EntryEnabled))
	assert.True(t, p.IsDisplayConnected("lcd"))
	assert.False(t, p.IsDisplayConnected("tv"))
}

func TestApplyLaterFramebufferListSkipsFailedOverlay(t *testing.T) {
	p, fa, acc := newFailingPool(t)
	fa.fail = func(kind sysfs.Kind, index int, entry, value string) bool {
		return kind == sysfs.KindOverlay && index == 0 && entry == sysfs.EntryManager && value != ""
	}

	require.NoError(t, p.Connect(0, 0, "lcd"))
	require.NoError(t, p.Connect(0, 2, "tv"))

	_, err := p.Apply()
	require.Error(t, err)

	// overlay2's setup runs after overlay0 failed and lists only itself
	assert.Equal(t, "2", readFB(t, acc, 0))
	assert.Equal(t, "1", readAttr(t, acc, sysfs.KindOverlay, 2, sysfs.EntryEnabled))
	assert.Equal(t, "0", readAttr(t, acc, sysfs.KindOverlay, 0, sysfs.EntryEnabled))
	assert.False(t, p.IsDisplayConnected("lcd"))
	assert.True(t, p.IsDisplayConnected("tv"))
}

func TestApplyBestEffortFailureIsWarning(t *testing.T) {
	p, fa, _ := newFailingPool(t)

	require.NoError(t, p.Connect(0, 0, "lcd"))
	_, err := p.Apply()
	require.NoError(t, err)

	fa.fail = func(kind sysfs.Kind, index int, entry, value string) bool {
		return entry == sysfs.EntryManager && value == ""
	}

	require.NoError(t, p.Disconnect("lcd"))
	report, err := p.Apply()
	require.NoError(t, err)
	assert.True(t, report.OK())

	require.Len(t, report.Results, 1)
	assert.Len(t, report.Results[0].Warnings, 1)
	assert.Nil(t, report.Results[0].Binding)
	assert.False(t, p.IsDisplayConnected("lcd"))
}

func TestApplyTeardownFailureStillReleases(t *testing.T) {
	p, fa, _ := newFailingPool(t)

	require.NoError(t, p.Connect(0, 2, "2lcd"))
	_, err := p.Apply()
	require.NoError(t, err)

	fa.fail = func(kind sysfs.Kind, index int, entry, value string) bool {
		return entry == sysfs.EntryEnabled && value == "0"
	}

	require.NoError(t, p.Disconnect("2lcd"))
	report, err := p.Apply()
	assert.Error(t, err)
	require.Len(t, report.Failed(), 1)

	ov, err := p.Overlay(2)
	require.NoError(t, err)
	assert.Equal(t, Unbound, ov.State)
	assert.False(t, p.IsDisplayConnected("2lcd"))
}

func TestPlanDescribesApply(t *testing.T) {
	p, _, _ := newTestPool(t, threeManagerLayout(), Options{})

	require.NoError(t, p.Connect(0, 1, "tv"))
	plan := p.Plan()

	var got []string
	for _, op := range plan.Operations {
		got = append(got, op.String())
	}
	assert.Equal(t, []string{
		`overlay1/enabled="0"`,
		`overlay1/manager=""`,
		`overlay1/manager="tv"`,
		`fb0/overlays="1"`,
		`overlay1/enabled="1"`,
	}, got)

	assert.Len(t, plan.Phase(PhaseTeardown), 2)
	assert.Len(t, plan.Phase(PhaseSetup), 3)
	assert.True(t, plan.Operations[1].BestEffort)

	// Planning is side-effect free
	assert.True(t, p.Dirty())
	assert.False(t, p.IsDisplayConnected("tv"))
}
