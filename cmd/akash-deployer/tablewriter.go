package main

import (
	"os"

	"github.com/olekukonko/tablewriter"
)

type VisualTable struct {
	Header   []string
	Data     [][]string
	RowColor []RowColor
}

type RowColor struct {
	row    int
	column []int
	color  []tablewriter.Colors
}

func NewVisualTable(header []string, data [][]string, rowColor []RowColor) *VisualTable {
	return &VisualTable{
		Header:   header,
		Data:     data,
		RowColor: rowColor,
	}
}

func (v *VisualTable) Generate() {
	table := tablewriter.NewWriter(os.Stdout)

	for index, datum := range v.Data {
		var rowColors []tablewriter.Colors
		for _, rowColor := range v.RowColor {
			if index != rowColor.row {
				continue
			}
			for dIndex := range datum {
				cellColor := tablewriter.Colors{}
				for n, colIndex := range rowColor.column {
					if dIndex == colIndex {
						cellColor = rowColor.color[n]
					}
				}
				rowColors = append(rowColors, cellColor)
			}
		}
		table.Rich(datum, rowColors)
	}

	table.SetHeader(v.Header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetBorder(false)
	table.SetTablePadding("\t")
	table.SetNoWhiteSpace(true)
	table.Render()
}

// stateColor picks the cell colour of a deployment or teardown state.
func stateColor(row, column int, healthy bool) RowColor {
	color := tablewriter.Colors{tablewriter.Bold, tablewriter.FgGreenColor}
	if !healthy {
		color = tablewriter.Colors{tablewriter.Bold, tablewriter.FgRedColor}
	}
	return RowColor{row: row, column: []int{column}, color: []tablewriter.Colors{color}}
}
