package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/davidbalbert/miniospf/ospf"
)

// tabulate lays out items in columns as wide as their widest cell, with a
// header and a dashed separator.
func tabulate[T any](items []T, headers []string, f func(T) []string) ([]string, error) {
	columnWidths := make([]int, len(headers))
	for i, h := range headers {
		columnWidths[i] = len(h)
	}

	cells := make([][]string, len(items))

	for i, item := range items {
		cells[i] = f(item)

		if len(cells[i]) != len(headers) {
			return nil, fmt.Errorf("invalid number of columns for item %d", i)
		}

		for j, cell := range cells[i] {
			if len(cell) > columnWidths[j] {
				columnWidths[j] = len(cell)
			}
		}
	}

	table := make([]string, 0, len(items)+2)
	table = append(table, row(columnWidths, headers))

	separator := make([]string, len(headers))
	for i, w := range columnWidths {
		separator[i] = strings.Repeat("-", w)
	}
	table = append(table, row(columnWidths, separator))

	for _, r := range cells {
		table = append(table, row(columnWidths, r))
	}

	return table, nil
}

func row(widths []int, cells []string) string {
	var b strings.Builder
	for i, cell := range cells {
		if i == len(cells)-1 {
			b.WriteString(cell)
		} else {
			fmt.Fprintf(&b, "%-*s", widths[i]+3, cell)
		}
	}
	return b.String()
}

func writeLines(w io.Writer, lines []string) error {
	for _, l := range lines {
		if _, err := fmt.Fprintln(w, l); err != nil {
			return err
		}
	}
	return nil
}

func orNone(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func printStatus(w io.Writer, st *ospf.Status) error {
	type field struct {
		name, value string
	}

	fields := []field{
		{"Router ID", st.RouterID},
		{"OSPF version", strconv.Itoa(st.Version)},
		{"Area", fmt.Sprintf("%s (%s)", st.Area, st.AreaType)},
	}

	if st.Link == nil {
		fields = append(fields, field{"Interface", "none"})
	} else {
		fields = append(fields,
			field{"Interface", st.Link.Interface},
			field{"Address", st.Link.Address},
			field{"State", st.Link.State},
			field{"DR", st.Link.DR},
			field{"BDR", st.Link.BDR},
			field{"Neighbors", strconv.Itoa(len(st.Link.Neighbors))},
		)
	}

	fields = append(fields, field{"LSAs", strconv.Itoa(len(st.LSAs))})

	width := 0
	for _, f := range fields {
		width = max(width, len(f.name))
	}

	for _, f := range fields {
		if _, err := fmt.Fprintf(w, "%-*s  %s\n", width+1, f.name+":", f.value); err != nil {
			return err
		}
	}

	return nil
}

func printNeighbors(w io.Writer, st *ospf.Status) error {
	var neighbors []ospf.NeighborStatus
	if st.Link != nil {
		neighbors = st.Link.Neighbors
	}

	headers := []string{"Neighbor ID", "Pri", "State", "Dead Time", "Address", "DR", "BDR", "Req", "Retrans"}
	table, err := tabulate(neighbors, headers, func(n ospf.NeighborStatus) []string {
		return []string{
			n.RouterID,
			strconv.Itoa(n.Priority),
			n.State,
			fmt.Sprintf("%ds", n.DeadIn),
			n.Address,
			orNone(n.DR),
			orNone(n.BDR),
			strconv.Itoa(n.Requests),
			strconv.Itoa(n.PendingUpdates),
		}
	})
	if err != nil {
		return err
	}

	return writeLines(w, table)
}

func printDatabase(w io.Writer, st *ospf.Status) error {
	headers := []string{"Type", "Link ID", "ADV Router", "Age", "Seq#", "Checksum", "Length"}
	table, err := tabulate(st.LSAs, headers, func(l ospf.LSAStatus) []string {
		return []string{
			l.Type,
			l.ID,
			l.AdvRouter,
			strconv.Itoa(l.Age),
			l.Sequence,
			l.Checksum,
			strconv.Itoa(l.Length),
		}
	})
	if err != nil {
		return err
	}

	return writeLines(w, table)
}
