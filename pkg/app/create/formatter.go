package create

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// FormatOutput writes the creation result to w according to format
func FormatOutput(w io.Writer, response *Response, format string) error {
	switch format {
	case "json":
		return formatJSON(w, response)
	case "yaml":
		return formatYAML(w, response)
	case "table":
		return formatTable(w, response)
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

// formatTable formats the partitions as a table followed by a summary
func formatTable(out io.Writer, response *Response) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	fmt.Fprintf(w, "NAME\tSTART\tEND\tSIZE\tGUID\n")
	fmt.Fprintf(w, "----\t-----\t---\t----\t----\n")
	for _, p := range response.Partitions {
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\t%s\n",
			p.Name, p.StartLBA, p.EndLBA, humanize.IBytes(p.SizeBytes), p.GUID)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(out, "\n")
	fmt.Fprintf(out, "Image: %s (%s, %d x %d-byte LBAs)\n",
		response.Path, response.FormatSize(), response.TotalLBAs, response.LBASize)
	fmt.Fprintf(out, "Disk GUID: %s\n", response.DiskGUID)
	if response.Verified {
		fmt.Fprintf(out, "Read-back check passed\n")
	}
	_, err := fmt.Fprintf(out, "Written in %v\n", response.WriteTime)
	return err
}

// formatJSON formats the result as JSON
func formatJSON(w io.Writer, response *Response) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(response)
}

// formatYAML formats the result as YAML
func formatYAML(w io.Writer, response *Response) error {
	encoder := yaml.NewEncoder(w)
	defer encoder.Close()
	encoder.SetIndent(2)
	return encoder.Encode(response)
}
