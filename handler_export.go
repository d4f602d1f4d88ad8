package main

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"time"

	"pulse/internal/audit"
	"pulse/internal/store"

	"github.com/xuri/excelize/v2"
)

// handleExportPosts exports post engagement to CSV or Excel.
func handleExportPosts(w http.ResponseWriter, r *http.Request) {
	u, ok := requireUser(w, r)
	if !ok {
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "csv"
	}

	query := `SELECT p.id, u.username, p.title,
		(SELECT COUNT(*) FROM comments c WHERE c.post_id = p.id),
		(SELECT COUNT(*) FROM likes l WHERE l.post_id = p.id),
		p.created_at
		FROM posts p JOIN users u ON p.user_id = u.id WHERE 1=1`
	var args []interface{}

	if search := r.URL.Query().Get("search"); search != "" {
		query += " AND (p.title LIKE ? OR p.content LIKE ?)"
		term := "%" + search + "%"
		args = append(args, term, term)
	}
	if userID := r.URL.Query().Get("user"); userID != "" {
		query += " AND p.user_id = ?"
		args = append(args, userID)
	}
	query += " ORDER BY p.created_at DESC, p.id DESC"

	rows, err := db.Query(query, args...)
	if err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	defer rows.Close()

	headers := []string{"ID", "Author", "Title", "Comments", "Likes", "Created At"}
	var data [][]string
	for rows.Next() {
		var id, comments, likes int
		var author, title string
		var createdAt time.Time
		if err := rows.Scan(&id, &author, &title, &comments, &likes, &createdAt); err != nil {
			continue
		}
		data = append(data, []string{itoa(id), author, title, itoa(comments), itoa(likes),
			createdAt.Format(store.TimeFormat)})
	}

	audit.Log(db, wsHub, u.Username, audit.ActionExport, "posts", "",
		fmt.Sprintf("Exported %d posts as %s", len(data), format))

	if format == "xlsx" {
		exportExcel(w, "Posts", headers, data)
	} else {
		exportCSV(w, "posts.csv", headers, data)
	}
}

// exportCSV writes data to CSV format.
func exportCSV(w http.ResponseWriter, filename string, headers []string, data [][]string) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))

	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write(headers); err != nil {
		http.Error(w, "Failed to write CSV headers", 500)
		return
	}
	for _, row := range data {
		if err := writer.Write(row); err != nil {
			http.Error(w, "Failed to write CSV row", 500)
			return
		}
	}
}

// exportExcel writes data to Excel format.
func exportExcel(w http.ResponseWriter, sheetName string, headers []string, data [][]string) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		http.Error(w, "Failed to create Excel sheet", 500)
		return
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#D3D3D3"}, Pattern: 1},
	})
	if err != nil {
		http.Error(w, "Failed to create header style", 500)
		return
	}

	for i, header := range headers {
		cell := fmt.Sprintf("%s1", string(rune('A'+i)))
		f.SetCellValue(sheetName, cell, header)
		f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	for rowIdx, row := range data {
		for colIdx, value := range row {
			cell := fmt.Sprintf("%s%d", string(rune('A'+colIdx)), rowIdx+2)
			f.SetCellValue(sheetName, cell, value)
		}
	}

	for i := range headers {
		col := string(rune('A' + i))
		f.SetColWidth(sheetName, col, col, 15)
	}

	if sheetName != "Sheet1" {
		f.DeleteSheet("Sheet1")
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.xlsx", sheetName))
	if err := f.Write(w); err != nil {
		http.Error(w, "Failed to write Excel file", 500)
	}
}
