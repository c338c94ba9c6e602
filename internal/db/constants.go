package db

// DieRecordsTable holds raw die records.
const DieRecordsTable = "die_records"

// SQL statements used across multiple functions
const (
	sqlInsertDieRecord = `INSERT INTO die_records (Wafer, Bin, Sub_Bin, Reading_1, Reading_2) VALUES (?, ?, ?, ?, ?)`

	sqlInsertReportRow = `INSERT INTO report_rows (table_name, row_index, cells) VALUES (?, ?, ?)`
)
