// PDF export: a paginated, print-oriented report of one snapshot.
package export

import (
	"fmt"
	"io"

	"github.com/go-pdf/fpdf"

	"github.com/doughall/hostpulse/internal/snapshot"
)

// WritePDF renders the document export. The creation date is pinned to
// the snapshot timestamp so the same Stats always produces the same
// bytes.
func WritePDF(w io.Writer, s *snapshot.Stats) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("HostPulse Snapshot", false)
	pdf.SetCreationDate(s.Timestamp.UTC())
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, "HostPulse Snapshot")
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 9)
	pdf.Cell(0, 6, "Captured "+s.Timestamp.UTC().Format("2006-01-02 15:04:05 UTC"))
	pdf.Ln(10)

	writeHeadline(pdf, s)
	writeDisks(pdf, s)
	writeGPUs(pdf, s)
	writeProcesses(pdf, s)

	return pdf.Output(w)
}

func sectionTitle(pdf *fpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, title)
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 10)
}

func keyValue(pdf *fpdf.Fpdf, key, value string) {
	pdf.CellFormat(55, 6, key, "", 0, "L", false, 0, "")
	pdf.CellFormat(0, 6, value, "", 1, "L", false, 0, "")
}

func writeHeadline(pdf *fpdf.Fpdf, s *snapshot.Stats) {
	sectionTitle(pdf, "System")
	keyValue(pdf, "CPU", formatPct(s.CPUPercent)+" %")
	keyValue(pdf, "RAM", formatPct(s.RAMPercent)+" %")
	battery := "not present"
	if s.BatteryPercent != nil {
		battery = formatPct(*s.BatteryPercent) + " %"
		if s.Charging != nil && *s.Charging {
			battery += " (charging)"
		}
	}
	keyValue(pdf, "Battery", battery)
	if len(s.Degraded) > 0 {
		keyValue(pdf, "Unavailable sensors", fmt.Sprintf("%v", s.Degraded))
	}
	pdf.Ln(4)
}

func writeDisks(pdf *fpdf.Fpdf, s *snapshot.Stats) {
	sectionTitle(pdf, "Filesystems")
	if len(s.Disks) == 0 {
		pdf.Cell(0, 6, "none reported")
		pdf.Ln(10)
		return
	}

	pdf.SetFont("Helvetica", "B", 9)
	pdf.CellFormat(55, 6, "Filesystem", "B", 0, "L", false, 0, "")
	pdf.CellFormat(55, 6, "Mount point", "B", 0, "L", false, 0, "")
	pdf.CellFormat(30, 6, "Size (MB)", "B", 0, "R", false, 0, "")
	pdf.CellFormat(30, 6, "Use %", "B", 1, "R", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)

	for _, d := range s.Disks {
		pdf.CellFormat(55, 6, d.Filesystem, "", 0, "L", false, 0, "")
		pdf.CellFormat(55, 6, d.MountPoint, "", 0, "L", false, 0, "")
		pdf.CellFormat(30, 6, fmt.Sprintf("%d", d.SizeBytes/(1024*1024)), "", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, formatPct(d.UsePercent), "", 1, "R", false, 0, "")
	}
	pdf.Ln(4)
}

func writeGPUs(pdf *fpdf.Fpdf, s *snapshot.Stats) {
	sectionTitle(pdf, "Graphics")
	if len(s.GPUs) == 0 {
		pdf.Cell(0, 6, "none detected")
		pdf.Ln(10)
		return
	}
	for _, g := range s.GPUs {
		line := fmt.Sprintf("%s (%s)", g.Model, g.Vendor)
		if g.VRAMMB > 0 {
			line += fmt.Sprintf(", %.0f MB VRAM", g.VRAMMB)
		}
		if g.UtilizationPercent != nil {
			line += fmt.Sprintf(", %s%% load", formatPct(*g.UtilizationPercent))
		}
		pdf.Cell(0, 6, line)
		pdf.Ln(6)
	}
	pdf.Ln(4)
}

func writeProcesses(pdf *fpdf.Fpdf, s *snapshot.Stats) {
	sectionTitle(pdf, "Top processes")
	procs := s.TopN(snapshot.ExportTopK)
	if len(procs) == 0 {
		pdf.Cell(0, 6, "none reported")
		pdf.Ln(6)
		return
	}

	pdf.SetFont("Helvetica", "B", 9)
	pdf.CellFormat(20, 6, "PID", "B", 0, "R", false, 0, "")
	pdf.CellFormat(90, 6, "Name", "B", 0, "L", false, 0, "")
	pdf.CellFormat(30, 6, "CPU %", "B", 0, "R", false, 0, "")
	pdf.CellFormat(30, 6, "Mem %", "B", 1, "R", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)

	for _, p := range procs {
		pdf.CellFormat(20, 6, fmt.Sprintf("%d", p.PID), "", 0, "R", false, 0, "")
		pdf.CellFormat(90, 6, p.Name, "", 0, "L", false, 0, "")
		pdf.CellFormat(30, 6, formatPct(p.CPUPercent), "", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, formatPct(p.MemPercent), "", 1, "R", false, 0, "")
	}
}
