package cpuctl

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// sysfsTree builds a fake /sys/devices/system/cpu below t.TempDir().
type sysfsTree struct {
	t    *testing.T
	root string
}

func newSysfsTree(t *testing.T) *sysfsTree {
	t.Helper()
	return &sysfsTree{t: t, root: t.TempDir()}
}

func (s *sysfsTree) write(rel, content string) {
	s.t.Helper()
	path := filepath.Join(s.root, rel)
	require.NoError(s.t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(s.t, os.WriteFile(path, []byte(content), 0644))
}

func (s *sysfsTree) read(rel string) string {
	s.t.Helper()
	data, err := os.ReadFile(filepath.Join(s.root, rel))
	require.NoError(s.t, err)
	return strings.TrimSpace(string(data))
}

func (s *sysfsTree) mkdir(rel string) {
	s.t.Helper()
	require.NoError(s.t, os.MkdirAll(filepath.Join(s.root, rel), 0755))
}

// addCore creates cpu<n> with an online file, a topology directory and a
// cpufreq directory in the shape acpi-cpufreq exposes.
func (s *sysfsTree) addCore(n int, online bool, siblings string) {
	s.t.Helper()
	dir := fmt.Sprintf("cpu%d", n)
	s.write(dir+"/online", formatOnline(online)+"\n")
	s.write(dir+"/topology/thread_siblings_list", siblings+"\n")
	s.addCpufreq(n)
}

func (s *sysfsTree) addCpufreq(n int) {
	s.t.Helper()
	dir := fmt.Sprintf("cpu%d/cpufreq/", n)
	s.write(dir+"scaling_cur_freq", "2400000\n")
	s.write(dir+"scaling_governor", "powersave\n")
	s.write(dir+"scaling_available_governors", "performance powersave userspace\n")
	s.write(dir+"scaling_setspeed", "<unsupported>\n")
	s.write(dir+"scaling_driver", "acpi-cpufreq\n")
	s.write(dir+"cpuinfo_min_freq", "800000\n")
	s.write(dir+"cpuinfo_max_freq", "3600000\n")
	s.write(dir+"scaling_min_freq", "800000\n")
	s.write(dir+"scaling_max_freq", "3600000\n")
	s.write(dir+"scaling_available_frequencies", "3600000 2400000 800000 \n")
}

// useUserspace switches cpu<n> to the userspace governor, which makes
// scaling_setspeed report the pinned frequency instead of <unsupported>.
func (s *sysfsTree) useUserspace(n int) {
	s.t.Helper()
	dir := fmt.Sprintf("cpu%d/cpufreq/", n)
	s.write(dir+"scaling_governor", "userspace\n")
	s.write(dir+"scaling_setspeed", "2400000\n")
}

// standardTree is four online cores where 0/1 and 2/3 are siblings.
func standardTree(t *testing.T) (*sysfsTree, *CPU) {
	t.Helper()
	tree := newSysfsTree(t)
	tree.addCore(0, true, "0-1")
	tree.addCore(1, true, "0-1")
	tree.addCore(2, true, "2-3")
	tree.addCore(3, true, "2-3")
	// entries that look like cores but are not
	tree.mkdir("cpufreq/policy0")
	tree.mkdir("cpuidle")
	tree.write("online", "0-3\n")
	tree.write("possible", "0-3\n")

	c, err := Open(WithRoot(tree.root))
	require.NoError(t, err)
	return tree, c
}
