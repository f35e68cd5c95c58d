package reporting

import (
	"encoding/csv"
	"strconv"
	"strings"
)

// RenderCSV renders the outcome rows as CSV string.
func RenderCSV(r *Report) string {
	var sb strings.Builder
	w := csv.NewWriter(&sb)

	w.Write([]string{"run_id", "metadata_address", "mint_address", "status", "attempts", "signature", "reason"})
	for _, o := range r.Outcomes {
		w.Write([]string{
			r.RunID,
			o.MetadataAddress,
			o.MintAddress,
			o.Status,
			strconv.Itoa(o.Attempts),
			o.Signature,
			o.Reason,
		})
	}
	w.Flush()

	return sb.String()
}
