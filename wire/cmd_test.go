// File: wire/cmd_test.go
// License: Apache-2.0

package wire_test

import (
	"testing"

	"github.com/clusterkit/dmsgcore/wire"
)

func TestCmdFlagAccessors(t *testing.T) {
	c := wire.CmdFlagCreate | wire.CmdFlagDelete | wire.CmdFlagReply
	if !c.HasCreate() || !c.HasDelete() || !c.HasReply() {
		t.Fatalf("expected Create/Delete/Reply all set on %#x", uint32(c))
	}
	if c.HasAbort() || c.HasRevTrans() || c.HasRevCirc() {
		t.Fatalf("unexpected flags set on %#x", uint32(c))
	}
}

func TestHeaderUnitsRoundTrip(t *testing.T) {
	c := wire.Cmd(0).WithHeaderUnits(3)
	if got := c.HeaderUnits(); got != 3 {
		t.Fatalf("HeaderUnits() = %d, want 3", got)
	}
	if got := c.HeaderBytes(); got != 3*wire.HeaderAlignment {
		t.Fatalf("HeaderBytes() = %d, want %d", got, 3*wire.HeaderAlignment)
	}
}

func TestBaseMasksOutFlagsAndSize(t *testing.T) {
	c := wire.Cmd(0x1234) | wire.CmdFlagCreate | wire.CmdFlagAbort
	c = c.WithHeaderUnits(2)
	base := c.Base()
	if base.HasCreate() || base.HasAbort() {
		t.Fatalf("Base() leaked flag bits: %#x", uint32(base))
	}
	if base.HeaderUnits() != 0 {
		t.Fatalf("Base() leaked size bits: %#x", uint32(base))
	}
}

func TestAlignUp(t *testing.T) {
	cases := map[uint32]uint32{0: 0, 1: 64, 64: 64, 65: 128, 127: 128, 128: 128}
	for in, want := range cases {
		if got := wire.AlignUp(in); got != want {
			t.Fatalf("AlignUp(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestComputeTCmd(t *testing.T) {
	icmd := wire.Cmd(0x4200)

	t.Run("create latches icmd plus state flags", func(t *testing.T) {
		cmd := wire.CmdFlagCreate | wire.CmdFlagReply
		got := wire.ComputeTCmd(icmd, cmd, true)
		want := icmd.Base() | wire.CmdFlagCreate | wire.CmdFlagReply
		if got != want {
			t.Fatalf("ComputeTCmd() = %#x, want %#x", uint32(got), uint32(want))
		}
	})

	t.Run("non-transactional is always zero", func(t *testing.T) {
		cmd := wire.Cmd(0x0100)
		if got := wire.ComputeTCmd(icmd, cmd, false); got != 0 {
			t.Fatalf("ComputeTCmd() = %#x, want 0", uint32(got))
		}
	})

	t.Run("transactional non-create/delete uses switch bits", func(t *testing.T) {
		cmd := wire.Cmd(0x00ABCD00)
		got := wire.ComputeTCmd(icmd, cmd, true)
		if got != cmd&wire.CmdSwitchMask {
			t.Fatalf("ComputeTCmd() = %#x, want %#x", uint32(got), uint32(cmd&wire.CmdSwitchMask))
		}
	})
}
