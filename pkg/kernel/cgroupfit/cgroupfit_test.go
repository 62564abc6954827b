package cgroupfit

import (
	"testing"

	"github.com/nyxkernel/kernel/pkg/kernel/types"
)

func TestApplyWithoutConnectionReportsUnavailable(t *testing.T) {
	a := &Adapter{}
	err := a.Apply(nil, types.Pid(1), 1234, types.DefaultResourceLimits())
	if err != ErrCgroupUnavailable {
		t.Fatalf("Apply with no connection got err=%v want ErrCgroupUnavailable", err)
	}
}

func TestUnitNameIsDeterministic(t *testing.T) {
	if unitName(types.Pid(7)) != unitName(types.Pid(7)) {
		t.Fatalf("unitName is not deterministic")
	}
	if unitName(types.Pid(7)) == unitName(types.Pid(8)) {
		t.Fatalf("unitName collided across distinct pids")
	}
}
