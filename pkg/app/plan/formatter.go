package plan

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// FormatOutput writes the planned layout to w according to format
func FormatOutput(w io.Writer, response *Response, format string) error {
	switch format {
	case "json":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(response)
	case "yaml":
		encoder := yaml.NewEncoder(w)
		defer encoder.Close()
		encoder.SetIndent(2)
		return encoder.Encode(response)
	case "table":
		return formatTable(w, response)
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

// formatTable lists the regions in on-disk order
func formatTable(out io.Writer, response *Response) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	fmt.Fprintf(w, "REGION\tSTART\tEND\tLBAS\tSIZE\n")
	fmt.Fprintf(w, "------\t-----\t---\t----\t----\n")
	for _, r := range response.Regions {
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%s\n",
			r.Name, r.StartLBA, r.EndLBA, r.SizeLBAs, humanize.IBytes(r.SizeBytes))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(out, "\n")
	fmt.Fprintf(out, "Usable LBAs: %d-%d\n", response.FirstUsableLBA, response.LastUsableLBA)
	_, err := fmt.Fprintf(out, "Image size: %s (%d x %d-byte LBAs)\n",
		response.FormatSize(), response.TotalLBAs, response.LBASize)
	return err
}
