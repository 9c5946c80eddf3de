package cpuctl

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_MissingRoot(t *testing.T) {
	_, err := Open(WithRoot(filepath.Join(t.TempDir(), "missing")))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDiscovery)
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestOpen_RootIsFile(t *testing.T) {
	tree := newSysfsTree(t)
	tree.write("file", "x")

	_, err := Open(WithRoot(filepath.Join(tree.root, "file")))
	assert.ErrorIs(t, err, ErrDiscovery)
}

func TestOpen_EmptyRootIsValid(t *testing.T) {
	c, err := Open(WithRoot(t.TempDir()))
	require.NoError(t, err)

	cores, err := c.Cores()
	require.NoError(t, err)
	assert.Empty(t, cores)

	online, err := c.Online()
	require.NoError(t, err)
	assert.Empty(t, online)
}

func TestOpen_DefaultRoot(t *testing.T) {
	c := &CPU{root: DefaultRoot}
	WithRoot("")(c)
	assert.Equal(t, DefaultRoot, c.Root())
}

func TestCores_SkipsNonCoreEntries(t *testing.T) {
	tree, c := standardTree(t)
	tree.mkdir("cpu12x")
	tree.write("cpu9", "not a directory")
	tree.addCore(10, false, "10")

	cores, err := c.Cores()
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3, 10}, cores)
}

func TestCores_FollowsSymlinks(t *testing.T) {
	tree := newSysfsTree(t)
	tree.addCore(0, true, "0")
	tree.addCore(1, true, "1")

	linkRoot := t.TempDir()
	require.NoError(t, os.Symlink(filepath.Join(tree.root, "cpu0"), filepath.Join(linkRoot, "cpu0")))
	require.NoError(t, os.Symlink(filepath.Join(tree.root, "cpu1"), filepath.Join(linkRoot, "cpu1")))
	require.NoError(t, os.Symlink(filepath.Join(tree.root, "gone"), filepath.Join(linkRoot, "cpu2")))

	c, err := Open(WithRoot(linkRoot))
	require.NoError(t, err)

	cores, err := c.Cores()
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, cores)
}

func TestOnline_ReportedCoresAreOnline(t *testing.T) {
	tree, c := standardTree(t)
	tree.write("cpu2/online", "0\n")
	tree.addCore(7, false, "7")

	online, err := c.Online()
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 3}, online)

	for _, core := range online {
		ok, err := c.IsOnline(core)
		require.NoError(t, err)
		assert.True(t, ok, "cpu%d", core)
	}
}

func TestOnline_CoreWithoutOnlineFile(t *testing.T) {
	tree, c := standardTree(t)
	require.NoError(t, os.Remove(filepath.Join(tree.root, "cpu0/online")))

	online, err := c.Online()
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3}, online)
}

func TestIsOnline_MissingCore(t *testing.T) {
	_, c := standardTree(t)

	_, err := c.IsOnline(42)
	assert.ErrorIs(t, err, ErrAttributeNotFound)
}

func TestIsOnline_Garbage(t *testing.T) {
	tree, c := standardTree(t)
	tree.write("cpu1/online", "yes\n")

	_, err := c.IsOnline(1)
	assert.ErrorIs(t, err, ErrAttributeRead)
}

func TestEnableDisable_Idempotent(t *testing.T) {
	tree, c := standardTree(t)

	require.NoError(t, c.Disable(2))
	assert.Equal(t, "0", tree.read("cpu2/online"))
	require.NoError(t, c.Disable(2))
	assert.Equal(t, "0", tree.read("cpu2/online"))

	require.NoError(t, c.Enable(2))
	assert.Equal(t, "1", tree.read("cpu2/online"))
	require.NoError(t, c.Enable(2))
	assert.Equal(t, "1", tree.read("cpu2/online"))
}

func TestDisable_AlreadyOfflineDoesNotWrite(t *testing.T) {
	tree, c := standardTree(t)
	tree.write("cpu3/online", "0\n")
	require.NoError(t, os.Chmod(filepath.Join(tree.root, "cpu3/online"), 0444))

	assert.NoError(t, c.Disable(3))
	assert.Equal(t, "0", tree.read("cpu3/online"))
}

func TestDisable_CoreZeroIsProtected(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, tree *sysfsTree)
	}{
		{"all online", func(t *testing.T, tree *sysfsTree) {}},
		{"others offline", func(t *testing.T, tree *sysfsTree) {
			tree.write("cpu1/online", "0\n")
			tree.write("cpu2/online", "0\n")
			tree.write("cpu3/online", "0\n")
		}},
		{"no online file", func(t *testing.T, tree *sysfsTree) {
			require.NoError(t, os.Remove(filepath.Join(tree.root, "cpu0/online")))
		}},
		{"core zero reads offline", func(t *testing.T, tree *sysfsTree) {
			tree.write("cpu0/online", "0\n")
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree, c := standardTree(t)
			tt.setup(t, tree)

			err := c.Disable(0)
			assert.ErrorIs(t, err, ErrProtectedCore)

			var ce *CoreError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, 0, ce.CPU)
		})
	}
}

func TestDisable_NotHotpluggable(t *testing.T) {
	tree, c := standardTree(t)
	require.NoError(t, os.Remove(filepath.Join(tree.root, "cpu2/online")))

	assert.ErrorIs(t, c.Disable(2), ErrProtectedCore)
	assert.NoError(t, c.Enable(2))
}

func TestDisable_LastCore(t *testing.T) {
	tree, c := standardTree(t)
	tree.write("cpu0/online", "0\n")
	tree.write("cpu2/online", "0\n")
	tree.write("cpu3/online", "0\n")

	err := c.Disable(1)
	assert.ErrorIs(t, err, ErrLastCore)
	assert.Equal(t, "1", tree.read("cpu1/online"))

	online, err := c.Online()
	require.NoError(t, err)
	assert.Equal(t, []int{1}, online)
}

func TestDisable_MissingCore(t *testing.T) {
	_, c := standardTree(t)

	assert.ErrorIs(t, c.Disable(8), ErrAttributeNotFound)
	assert.ErrorIs(t, c.Enable(8), ErrAttributeNotFound)
	assert.ErrorIs(t, c.Disable(-1), ErrAttributeNotFound)
}

func TestDisable_WriteFailure(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root ignores file permissions")
	}
	tree, c := standardTree(t)
	require.NoError(t, os.Chmod(filepath.Join(tree.root, "cpu3/online"), 0444))

	err := c.Disable(3)
	assert.ErrorIs(t, err, ErrAttributeWrite)
	assert.ErrorIs(t, err, fs.ErrPermission)
}

func TestDisableHyperthread_DisablesSiblingOnly(t *testing.T) {
	tree, c := standardTree(t)

	require.NoError(t, c.DisableHyperthread(0))

	assert.Equal(t, "1", tree.read("cpu0/online"))
	assert.Equal(t, "0", tree.read("cpu1/online"))
	assert.Equal(t, "1", tree.read("cpu2/online"))
	assert.Equal(t, "1", tree.read("cpu3/online"))

	online, err := c.IsOnline(0)
	require.NoError(t, err)
	assert.True(t, online)
}

func TestDisableHyperthread_SiblingIsCoreZero(t *testing.T) {
	tree, c := standardTree(t)

	assert.ErrorIs(t, c.DisableHyperthread(1), ErrProtectedCore)
	assert.Equal(t, "1", tree.read("cpu1/online"))
}

func TestDisableHyperthread_SMT4(t *testing.T) {
	tree := newSysfsTree(t)
	for i := 0; i < 8; i++ {
		if i < 4 {
			tree.addCore(i, true, "0-3")
		} else {
			tree.addCore(i, true, "4-7")
		}
	}
	c, err := Open(WithRoot(tree.root))
	require.NoError(t, err)

	require.NoError(t, c.DisableHyperthread(5))

	online, err := c.Online()
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3, 5}, online)
}

func TestDisableHyperthread_NoSibling(t *testing.T) {
	tree, c := standardTree(t)
	tree.write("cpu3/topology/thread_siblings_list", "3\n")

	err := c.DisableHyperthread(3)
	assert.ErrorIs(t, err, ErrNoSibling)
	assert.Equal(t, "1", tree.read("cpu3/online"))
}

func TestSiblings_FallsBackToCoreID(t *testing.T) {
	tree := newSysfsTree(t)
	for i, ids := range [][2]string{{"0", "0"}, {"0", "1"}, {"0", "0"}, {"0", "1"}, {"1", "0"}} {
		dir := fmt.Sprintf("cpu%d", i)
		tree.write(dir+"/online", "1\n")
		tree.write(dir+"/topology/physical_package_id", ids[0]+"\n")
		tree.write(dir+"/topology/core_id", ids[1]+"\n")
	}
	c, err := Open(WithRoot(tree.root))
	require.NoError(t, err)

	siblings, err := c.Siblings(0)
	require.NoError(t, err)
	assert.Equal(t, []int{2}, siblings)

	siblings, err = c.Siblings(4)
	require.NoError(t, err)
	assert.Empty(t, siblings)
	assert.ErrorIs(t, c.DisableHyperthread(4), ErrNoSibling)

	require.NoError(t, c.DisableHyperthread(1))
	assert.Equal(t, "0", tree.read("cpu3/online"))
}

func TestSiblings_Garbage(t *testing.T) {
	tree, c := standardTree(t)
	tree.write("cpu2/topology/thread_siblings_list", "two,three\n")

	_, err := c.Siblings(2)
	assert.ErrorIs(t, err, ErrAttributeRead)
}

func TestFrequency(t *testing.T) {
	_, c := standardTree(t)

	f, err := c.Frequency(1)
	require.NoError(t, err)
	assert.Equal(t, uint64(2400000), f)
}

func TestFrequency_Garbage(t *testing.T) {
	tree, c := standardTree(t)
	tree.write("cpu1/cpufreq/scaling_cur_freq", "<unknown>\n")

	_, err := c.Frequency(1)
	assert.ErrorIs(t, err, ErrAttributeRead)
}

func TestNoCpufreq(t *testing.T) {
	tree := newSysfsTree(t)
	tree.write("cpu0/topology/thread_siblings_list", "0\n")
	tree.write("cpu1/online", "1\n")
	c, err := Open(WithRoot(tree.root))
	require.NoError(t, err)

	_, err = c.Frequency(1)
	assert.ErrorIs(t, err, ErrAttributeNotFound)
	_, err = c.Governor(1)
	assert.ErrorIs(t, err, ErrAttributeNotFound)

	assert.ErrorIs(t, c.SetFrequency(1, 1000000), ErrUnsupported)
	assert.ErrorIs(t, c.SetGovernor(1, "performance"), ErrUnsupported)
	assert.ErrorIs(t, c.SetFrequencyLimits(1, 800000, 1000000), ErrUnsupported)
}

func TestSetFrequency(t *testing.T) {
	tree, c := standardTree(t)
	tree.useUserspace(2)

	require.NoError(t, c.SetFrequency(2, 1800000))
	assert.Equal(t, "1800000", tree.read("cpu2/cpufreq/scaling_setspeed"))
}

func TestSetFrequency_DynamicGovernor(t *testing.T) {
	tree, c := standardTree(t)

	err := c.SetFrequency(2, 1800000)
	assert.ErrorIs(t, err, ErrUnsupported)
	assert.NotErrorIs(t, err, ErrInvalidFrequency)
	assert.Equal(t, "<unsupported>", tree.read("cpu2/cpufreq/scaling_setspeed"))

	var ce *CoreError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, 2, ce.CPU)
	assert.Equal(t, AttrSetSpeed, ce.Attr)
}

func TestSetFrequency_Zero(t *testing.T) {
	tree, c := standardTree(t)

	assert.ErrorIs(t, c.SetFrequency(2, 0), ErrInvalidFrequency)
	assert.Equal(t, "<unsupported>", tree.read("cpu2/cpufreq/scaling_setspeed"))
}

func TestSetFrequency_NoSetspeed(t *testing.T) {
	tree, c := standardTree(t)
	require.NoError(t, os.Remove(filepath.Join(tree.root, "cpu2/cpufreq/scaling_setspeed")))

	err := c.SetFrequency(2, 1800000)
	assert.ErrorIs(t, err, ErrUnsupported)
	assert.NotErrorIs(t, err, ErrAttributeNotFound)

	_, statErr := os.Stat(filepath.Join(tree.root, "cpu2/cpufreq/scaling_setspeed"))
	assert.True(t, os.IsNotExist(statErr), "setspeed must not be created")
}

func TestSetFrequency_Rejected(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root ignores file permissions")
	}
	tree, c := standardTree(t)
	tree.useUserspace(2)
	require.NoError(t, os.Chmod(filepath.Join(tree.root, "cpu2/cpufreq/scaling_setspeed"), 0444))

	err := c.SetFrequency(2, 1800000)
	assert.ErrorIs(t, err, ErrInvalidFrequency)
	assert.ErrorIs(t, err, fs.ErrPermission)

	var ce *CoreError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, 2, ce.CPU)
	assert.Equal(t, AttrSetSpeed, ce.Attr)
}

func TestSetFrequency_SetspeedUnreadable(t *testing.T) {
	tree, c := standardTree(t)
	require.NoError(t, os.Remove(filepath.Join(tree.root, "cpu2/cpufreq/scaling_setspeed")))
	tree.mkdir("cpu2/cpufreq/scaling_setspeed")

	err := c.SetFrequency(2, 1800000)
	assert.ErrorIs(t, err, ErrAttributeRead)
}

func TestSetFrequencyAll(t *testing.T) {
	tree, c := standardTree(t)
	tree.useUserspace(1)
	tree.write("cpu3/online", "0\n")

	require.NoError(t, c.SetFrequencyAll(1800000))

	for _, core := range []int{0, 1, 2} {
		lo, hi, err := c.FrequencyLimits(core)
		require.NoError(t, err)
		assert.Equal(t, uint64(1800000), lo, "cpu%d min", core)
		assert.Equal(t, uint64(1800000), hi, "cpu%d max", core)
	}
	assert.Equal(t, "1800000", tree.read("cpu1/cpufreq/scaling_setspeed"))
	assert.Equal(t, "<unsupported>", tree.read("cpu0/cpufreq/scaling_setspeed"))

	// offline cores are left alone
	assert.Equal(t, "800000", tree.read("cpu3/cpufreq/scaling_min_freq"))
	assert.Equal(t, "3600000", tree.read("cpu3/cpufreq/scaling_max_freq"))

	assert.ErrorIs(t, c.SetFrequencyAll(0), ErrInvalidFrequency)
}

func TestSetFrequencyAll_StopsAtFirstError(t *testing.T) {
	tree, c := standardTree(t)
	require.NoError(t, os.RemoveAll(filepath.Join(tree.root, "cpu1/cpufreq")))

	assert.ErrorIs(t, c.SetFrequencyAll(1800000), ErrUnsupported)
	assert.Equal(t, "1800000", tree.read("cpu0/cpufreq/scaling_max_freq"))
	assert.Equal(t, "3600000", tree.read("cpu2/cpufreq/scaling_max_freq"))
}

func TestOfflineWriteErr(t *testing.T) {
	busy := coreErr("write", 3, AttrOnline, ErrAttributeWrite,
		&fs.PathError{Op: "write", Path: "cpu3/online", Err: syscall.EBUSY})

	err := offlineWriteErr(busy)
	assert.ErrorIs(t, err, ErrLastCore)
	assert.NotErrorIs(t, err, ErrAttributeWrite)
	assert.ErrorIs(t, err, syscall.EBUSY)

	other := coreErr("write", 3, AttrOnline, ErrAttributeWrite,
		&fs.PathError{Op: "write", Path: "cpu3/online", Err: syscall.EIO})
	assert.Equal(t, other, offlineWriteErr(other))
	assert.NoError(t, offlineWriteErr(nil))
}

func TestFrequencyRangeAndLimits(t *testing.T) {
	tree, c := standardTree(t)

	lo, hi, err := c.FrequencyRange(0)
	require.NoError(t, err)
	assert.Equal(t, uint64(800000), lo)
	assert.Equal(t, uint64(3600000), hi)

	require.NoError(t, c.SetFrequencyLimits(0, 1200000, 2400000))
	assert.Equal(t, "1200000", tree.read("cpu0/cpufreq/scaling_min_freq"))
	assert.Equal(t, "2400000", tree.read("cpu0/cpufreq/scaling_max_freq"))

	lo, hi, err = c.FrequencyLimits(0)
	require.NoError(t, err)
	assert.Equal(t, uint64(1200000), lo)
	assert.Equal(t, uint64(2400000), hi)

	assert.ErrorIs(t, c.SetFrequencyLimits(0, 2400000, 1200000), ErrInvalidFrequency)
	assert.ErrorIs(t, c.SetFrequencyLimits(0, 0, 1200000), ErrInvalidFrequency)
}

func TestAvailableFrequencies(t *testing.T) {
	tree, c := standardTree(t)

	freqs, err := c.AvailableFrequencies(0)
	require.NoError(t, err)
	assert.Equal(t, []uint64{800000, 2400000, 3600000}, freqs)

	tree.write("cpu1/cpufreq/scaling_available_frequencies", "fast slow\n")
	_, err = c.AvailableFrequencies(1)
	assert.ErrorIs(t, err, ErrAttributeRead)
}

func TestGovernor(t *testing.T) {
	_, c := standardTree(t)

	g, err := c.Governor(0)
	require.NoError(t, err)
	assert.Equal(t, "powersave", g)

	available, err := c.AvailableGovernors(0)
	require.NoError(t, err)
	assert.Equal(t, []string{"performance", "powersave", "userspace"}, available)
}

func TestSetGovernor(t *testing.T) {
	tree, c := standardTree(t)

	require.NoError(t, c.SetGovernor(3, "performance"))
	assert.Equal(t, "performance", tree.read("cpu3/cpufreq/scaling_governor"))
}

func TestSetGovernor_Unknown(t *testing.T) {
	for _, name := range []string{"ondemand", "", "perf ormance", "performance\n"} {
		t.Run(name, func(t *testing.T) {
			tree, c := standardTree(t)

			err := c.SetGovernor(3, name)
			assert.ErrorIs(t, err, ErrUnknownGovernor)
			assert.Equal(t, "powersave", tree.read("cpu3/cpufreq/scaling_governor"))
		})
	}
}

func TestSetGovernorAll(t *testing.T) {
	tree, c := standardTree(t)
	tree.write("cpu3/online", "0\n")

	require.NoError(t, c.SetGovernorAll("performance"))

	govs, err := c.Governors()
	require.NoError(t, err)
	assert.Equal(t, map[int]string{0: "performance", 1: "performance", 2: "performance"}, govs)
	assert.Equal(t, "powersave", tree.read("cpu3/cpufreq/scaling_governor"))

	assert.ErrorIs(t, c.SetGovernorAll("turbo"), ErrUnknownGovernor)
}

func TestFrequencies(t *testing.T) {
	tree, c := standardTree(t)
	tree.write("cpu1/cpufreq/scaling_cur_freq", "3100000\n")
	tree.write("cpu2/online", "0\n")

	freqs, err := c.Frequencies()
	require.NoError(t, err)
	assert.Equal(t, map[int]uint64{0: 2400000, 1: 3100000, 3: 2400000}, freqs)
}

func TestEnableAllDisableAll(t *testing.T) {
	tree, c := standardTree(t)
	require.NoError(t, os.Remove(filepath.Join(tree.root, "cpu2/online")))

	changed, err := c.DisableAll()
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3}, changed)

	online, err := c.Online()
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2}, online)

	changed, err = c.EnableAll()
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3}, changed)

	changed, err = c.EnableAll()
	require.NoError(t, err)
	assert.Empty(t, changed)
}

func TestDisableAll_KeepsLastCore(t *testing.T) {
	tree, c := standardTree(t)
	tree.write("cpu0/online", "0\n")

	changed, err := c.DisableAll()
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, changed)

	online, err := c.Online()
	require.NoError(t, err)
	assert.Equal(t, []int{3}, online)
}

func TestCoreError(t *testing.T) {
	_, c := standardTree(t)

	_, err := c.ReadAttribute(9, AttrGovernor)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAttributeNotFound)
	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.Contains(t, err.Error(), "read cpu9 cpufreq/scaling_governor: attribute not found")

	err = coreErr("disable", 0, attrNone, ErrProtectedCore, nil)
	assert.Equal(t, "disable cpu0: core cannot be disabled", err.Error())
}
