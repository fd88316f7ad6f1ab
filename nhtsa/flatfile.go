// backend/nhtsa/flatfile.go
package nhtsa

import (
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/jszwec/csvutil"
	"golang.org/x/text/encoding/charmap"

	"github.com/roadsafety/silent-recall/backend/config"
	"github.com/roadsafety/silent-recall/backend/models"
)

// flatComplaintRow mirrors the flat_cmpl.txt columns. Everything arrives as
// text and goes through validated conversion before it becomes a record.
type flatComplaintRow struct {
	ODINumber string `csv:"CMPLID"`
	Make      string `csv:"MAKETXT"`
	Model     string `csv:"MODELTXT"`
	Year      string `csv:"YEARTXT"`
	Crash     string `csv:"CRASH"`
	Fire      string `csv:"FIRE"`
	Injuries  string `csv:"INJURED"`
	Deaths    string `csv:"DEATHS"`
	Component string `csv:"COMPDESC"`
	Summary   string `csv:"CDESCR"`
	FiledDate string `csv:"LDATE"`
}

func (r flatComplaintRow) record() (models.ComplaintRecord, error) {
	if r.ODINumber == "" {
		return models.ComplaintRecord{}, &ParseError{Source: "flat file", Field: "CMPLID", Reason: "missing"}
	}
	injuries, err := atoiOrZero(r.Injuries)
	if err != nil {
		return models.ComplaintRecord{}, &ParseError{Source: "flat file", Field: "INJURED", Reason: err.Error()}
	}
	deaths, err := atoiOrZero(r.Deaths)
	if err != nil {
		return models.ComplaintRecord{}, &ParseError{Source: "flat file", Field: "DEATHS", Reason: err.Error()}
	}
	return models.ComplaintRecord{
		ODINumber: r.ODINumber,
		Make:      r.Make,
		Model:     r.Model,
		Year:      r.Year,
		Crash:     r.Crash == "Y",
		Fire:      r.Fire == "Y",
		Injuries:  injuries,
		Deaths:    deaths,
		Component: r.Component,
		Summary:   r.Summary,
		FiledDate: r.FiledDate,
	}, nil
}

func atoiOrZero(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

// DownloadComplaintFile pulls the bulk complaint flat file over anonymous FTP
// and saves it under dataDir. Returns the local path.
func DownloadComplaintFile(cfg config.NHTSAConfig, dataDir string) (string, error) {
	log.Printf("NHTSA: Downloading %s from %s%s", cfg.FlatFileName, cfg.FlatFileHost, cfg.FlatFileDir)

	conn, err := ftp.Dial(cfg.FlatFileHost, ftp.DialWithTimeout(30*time.Second))
	if err != nil {
		return "", fmt.Errorf("failed to connect to FTP host %s: %w", cfg.FlatFileHost, err)
	}
	defer conn.Quit()

	if err := conn.Login("anonymous", "anonymous"); err != nil {
		return "", fmt.Errorf("FTP login failed: %w", err)
	}
	if err := conn.ChangeDir(cfg.FlatFileDir); err != nil {
		return "", fmt.Errorf("failed to change FTP directory to %s: %w", cfg.FlatFileDir, err)
	}

	resp, err := conn.Retr(cfg.FlatFileName)
	if err != nil {
		return "", fmt.Errorf("failed to retrieve %s: %w", cfg.FlatFileName, err)
	}
	defer resp.Close()

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory %s: %w", dataDir, err)
	}
	localPath := filepath.Join(dataDir, cfg.FlatFileName)
	outFile, err := os.Create(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to create local file %s: %w", localPath, err)
	}
	defer outFile.Close()

	if _, err := io.Copy(outFile, resp); err != nil {
		return "", fmt.Errorf("failed to save %s: %w", localPath, err)
	}

	log.Printf("NHTSA: Successfully downloaded %s", localPath)
	return localPath, nil
}

// ParseComplaintFile decodes the pipe-delimited, Latin-1 encoded flat file.
// Malformed rows are rejected individually; the second return value is the
// number of rows skipped.
func ParseComplaintFile(r io.Reader) ([]models.ComplaintRecord, int, error) {
	csvReader := csv.NewReader(charmap.ISO8859_1.NewDecoder().Reader(r))
	csvReader.Comma = '|'
	csvReader.LazyQuotes = true
	csvReader.FieldsPerRecord = -1

	decoder, err := csvutil.NewDecoder(csvReader)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create flat file decoder: %w", err)
	}

	var records []models.ComplaintRecord
	skipped := 0
	for {
		var row flatComplaintRow
		if err := decoder.Decode(&row); err == io.EOF {
			break
		} else if err != nil {
			skipped++
			continue
		}
		rec, err := row.record()
		if err != nil {
			skipped++
			continue
		}
		records = append(records, rec)
	}

	log.Printf("NHTSA: Parsed %d complaint rows from flat file (%d skipped).", len(records), skipped)
	return records, skipped, nil
}
