// GPU detection tests using canned tool output, so they do not depend
// on the hardware of the machine running the suite.
package sensors

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestParseNvidiaSMI(t *testing.T) {
	t.Run("two controllers", func(t *testing.T) {
		out := "NVIDIA GeForce RTX 3080, 34, 10240\nNVIDIA T400, 2, 2048\n"
		gpus := parseNvidiaSMI(out)

		if len(gpus) != 2 {
			t.Fatalf("expected 2 GPUs, got %d", len(gpus))
		}
		if gpus[0].Model != "NVIDIA GeForce RTX 3080" {
			t.Errorf("model: got %q", gpus[0].Model)
		}
		if gpus[0].Vendor != "NVIDIA" {
			t.Errorf("vendor: got %q", gpus[0].Vendor)
		}
		if !gpus[0].HasUtilization || gpus[0].Utilization != 34 {
			t.Errorf("utilization: got %v (has=%v)", gpus[0].Utilization, gpus[0].HasUtilization)
		}
		if gpus[1].VRAMMB != 2048 {
			t.Errorf("vram: got %v", gpus[1].VRAMMB)
		}
	})

	t.Run("not-supported utilization is explicitly absent", func(t *testing.T) {
		gpus := parseNvidiaSMI("NVIDIA T400, [N/A], 2048\n")
		if len(gpus) != 1 {
			t.Fatalf("expected 1 GPU, got %d", len(gpus))
		}
		if gpus[0].HasUtilization {
			t.Error("[N/A] must map to absent utilization, not a number")
		}
	})

	t.Run("garbage lines are skipped", func(t *testing.T) {
		if gpus := parseNvidiaSMI("no csv here\n"); len(gpus) != 0 {
			t.Errorf("expected no GPUs, got %d", len(gpus))
		}
	})
}

func TestParseLspci(t *testing.T) {
	out := strings.Join([]string{
		"00:00.0 Host bridge: Intel Corporation Device 9b61",
		"00:02.0 VGA compatible controller: Intel Corporation UHD Graphics 620 (rev 07)",
		"01:00.0 3D controller: NVIDIA Corporation GP108M [GeForce MX150] (rev a1)",
		"02:00.0 Ethernet controller: Realtek Semiconductor Co., Ltd. RTL8111",
	}, "\n")

	gpus := parseLspci(out)
	if len(gpus) != 2 {
		t.Fatalf("expected 2 controllers, got %d", len(gpus))
	}
	if gpus[0].Vendor != "Intel" {
		t.Errorf("vendor[0]: got %q", gpus[0].Vendor)
	}
	if gpus[1].Vendor != "NVIDIA" {
		t.Errorf("vendor[1]: got %q", gpus[1].Vendor)
	}
	if gpus[0].HasUtilization {
		t.Error("lspci fallback cannot report utilization")
	}
	if gpus[0].VRAMMB != 0 {
		t.Errorf("lspci fallback must not invent VRAM: got %v", gpus[0].VRAMMB)
	}
}

func TestGraphicsFallbackChain(t *testing.T) {
	ctx := context.Background()

	t.Run("nvidia-smi preferred", func(t *testing.T) {
		a := NewAdapter(nopLogger(), time.Second)
		a.runCommand = func(ctx context.Context, name string, args ...string) (string, error) {
			if name == "nvidia-smi" {
				return "NVIDIA GeForce RTX 3080, 12, 10240\n", nil
			}
			t.Errorf("unexpected command %q", name)
			return "", errors.New("unexpected")
		}

		gpus, ok := a.Graphics(ctx)
		if !ok || len(gpus) != 1 || gpus[0].Vendor != "NVIDIA" {
			t.Fatalf("unexpected result: ok=%v gpus=%v", ok, gpus)
		}
	})

	t.Run("falls back to lspci", func(t *testing.T) {
		a := NewAdapter(nopLogger(), time.Second)
		a.runCommand = func(ctx context.Context, name string, args ...string) (string, error) {
			switch name {
			case "nvidia-smi":
				return "", errors.New("executable file not found in $PATH")
			case "lspci":
				return "00:02.0 VGA compatible controller: Intel Corporation UHD Graphics 620\n", nil
			}
			return "", errors.New("unexpected")
		}

		gpus, ok := a.Graphics(ctx)
		if !ok || len(gpus) != 1 || gpus[0].Vendor != "Intel" {
			t.Fatalf("unexpected result: ok=%v gpus=%v", ok, gpus)
		}
	})

	t.Run("headless host is explicitly absent", func(t *testing.T) {
		a := NewAdapter(nopLogger(), time.Second)
		a.runCommand = func(ctx context.Context, name string, args ...string) (string, error) {
			return "", errors.New("executable file not found in $PATH")
		}

		if gpus, ok := a.Graphics(ctx); ok || gpus != nil {
			t.Errorf("expected absent, got ok=%v gpus=%v", ok, gpus)
		}
	})
}

func TestVendorFromModel(t *testing.T) {
	cases := map[string]string{
		"NVIDIA Corporation GP108M":             "NVIDIA",
		"Advanced Micro Devices, Inc. [AMD/ATI]": "AMD",
		"Intel Corporation UHD Graphics 620":    "Intel",
		"Matrox Electronics Systems Ltd. G200":  "unknown",
	}
	for model, want := range cases {
		if got := vendorFromModel(model); got != want {
			t.Errorf("vendorFromModel(%q) = %q, want %q", model, got, want)
		}
	}
}
