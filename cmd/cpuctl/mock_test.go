package main

import (
	"github.com/egandro/cpuctl/pkg/cpuctl"
	"github.com/stretchr/testify/mock"
)

type mockController struct {
	mock.Mock
}

var _ cpuctl.Controller = (*mockController)(nil)

func ints(v any) []int {
	if v == nil {
		return nil
	}
	return v.([]int)
}

func (m *mockController) Cores() ([]int, error) {
	args := m.Called()
	return ints(args.Get(0)), args.Error(1)
}

func (m *mockController) Online() ([]int, error) {
	args := m.Called()
	return ints(args.Get(0)), args.Error(1)
}

func (m *mockController) IsOnline(core int) (bool, error) {
	args := m.Called(core)
	return args.Bool(0), args.Error(1)
}

func (m *mockController) Siblings(core int) ([]int, error) {
	args := m.Called(core)
	return ints(args.Get(0)), args.Error(1)
}

func (m *mockController) Enable(core int) error {
	return m.Called(core).Error(0)
}

func (m *mockController) Disable(core int) error {
	return m.Called(core).Error(0)
}

func (m *mockController) DisableHyperthread(core int) error {
	return m.Called(core).Error(0)
}

func (m *mockController) EnableAll() ([]int, error) {
	args := m.Called()
	return ints(args.Get(0)), args.Error(1)
}

func (m *mockController) DisableAll() ([]int, error) {
	args := m.Called()
	return ints(args.Get(0)), args.Error(1)
}

func (m *mockController) Frequency(core int) (uint64, error) {
	args := m.Called(core)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *mockController) SetFrequency(core int, khz uint64) error {
	return m.Called(core, khz).Error(0)
}

func (m *mockController) SetFrequencyAll(khz uint64) error {
	return m.Called(khz).Error(0)
}

func (m *mockController) FrequencyRange(core int) (uint64, uint64, error) {
	args := m.Called(core)
	return args.Get(0).(uint64), args.Get(1).(uint64), args.Error(2)
}

func (m *mockController) FrequencyLimits(core int) (uint64, uint64, error) {
	args := m.Called(core)
	return args.Get(0).(uint64), args.Get(1).(uint64), args.Error(2)
}

func (m *mockController) SetFrequencyLimits(core int, minKHz, maxKHz uint64) error {
	return m.Called(core, minKHz, maxKHz).Error(0)
}

func (m *mockController) AvailableFrequencies(core int) ([]uint64, error) {
	args := m.Called(core)
	if v := args.Get(0); v != nil {
		return v.([]uint64), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockController) Frequencies() (map[int]uint64, error) {
	args := m.Called()
	if v := args.Get(0); v != nil {
		return v.(map[int]uint64), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockController) Governor(core int) (string, error) {
	args := m.Called(core)
	return args.String(0), args.Error(1)
}

func (m *mockController) SetGovernor(core int, name string) error {
	return m.Called(core, name).Error(0)
}

func (m *mockController) SetGovernorAll(name string) error {
	return m.Called(name).Error(0)
}

func (m *mockController) AvailableGovernors(core int) ([]string, error) {
	args := m.Called(core)
	if v := args.Get(0); v != nil {
		return v.([]string), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockController) Governors() (map[int]string, error) {
	args := m.Called()
	if v := args.Get(0); v != nil {
		return v.(map[int]string), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockController) Status(core int) (cpuctl.CoreStatus, error) {
	args := m.Called(core)
	return args.Get(0).(cpuctl.CoreStatus), args.Error(1)
}

func (m *mockController) Snapshot() ([]cpuctl.CoreStatus, error) {
	args := m.Called()
	if v := args.Get(0); v != nil {
		return v.([]cpuctl.CoreStatus), args.Error(1)
	}
	return nil, args.Error(1)
}
