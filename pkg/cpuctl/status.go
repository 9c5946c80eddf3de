package cpuctl

import "errors"

// CoreStatus is a point-in-time view of a single core. Fields backed by
// attributes the core does not expose are left at their zero value.
type CoreStatus struct {
	CPU          int    `json:"cpu"`
	Online       bool   `json:"online"`
	Governor     string `json:"governor,omitempty"`
	Driver       string `json:"driver,omitempty"`
	FrequencyKHz uint64 `json:"frequency_khz,omitempty"`
	MinKHz       uint64 `json:"min_khz,omitempty"`
	MaxKHz       uint64 `json:"max_khz,omitempty"`
	Siblings     []int  `json:"siblings,omitempty"`
}

// Status collects the current state of core.
func (c *CPU) Status(core int) (CoreStatus, error) {
	st := CoreStatus{CPU: core}

	online, err := c.IsOnline(core)
	if err != nil {
		return st, err
	}
	st.Online = online

	if st.Siblings, err = optional(c.Siblings(core)); err != nil {
		return st, err
	}
	// cpufreq policies of offline cores are inactive
	if !online {
		return st, nil
	}

	if st.Governor, err = optional(c.Governor(core)); err != nil {
		return st, err
	}
	if st.Driver, err = optional(c.ReadAttribute(core, AttrDriver)); err != nil {
		return st, err
	}
	if st.FrequencyKHz, err = optional(c.Frequency(core)); err != nil {
		return st, err
	}
	if st.MinKHz, err = optional(c.readKHz(core, AttrMinFreq)); err != nil {
		return st, err
	}
	if st.MaxKHz, err = optional(c.readKHz(core, AttrMaxFreq)); err != nil {
		return st, err
	}
	return st, nil
}

// Snapshot collects the status of every discovered core in ascending order.
func (c *CPU) Snapshot() ([]CoreStatus, error) {
	cores, err := c.Cores()
	if err != nil {
		return nil, err
	}

	res := make([]CoreStatus, 0, len(cores))
	for _, core := range cores {
		st, err := c.Status(core)
		if err != nil {
			// core vanished after listing
			if errors.Is(err, ErrAttributeNotFound) {
				continue
			}
			return nil, err
		}
		res = append(res, st)
	}
	return res, nil
}

// optional turns ErrAttributeNotFound into the zero value.
func optional[T any](v T, err error) (T, error) {
	if err != nil && errors.Is(err, ErrAttributeNotFound) {
		var zero T
		return zero, nil
	}
	return v, err
}
