package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/franz/xwalk-migrate/internal/kvstore"
	"github.com/franz/xwalk-migrate/internal/layout"
	"github.com/franz/xwalk-migrate/internal/legacy"
	"github.com/franz/xwalk-migrate/internal/locate"
	"github.com/franz/xwalk-migrate/internal/transcode"
	"github.com/franz/xwalk-migrate/internal/util"
	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [store-path]",
	Short: "Dump the migrated local storage records",
	Long: `Print the local storage records at the destination.

Without an argument the store is found the same way migrate finds it:
from --files-dir and the installed WebView version. A LevelDB directory and
a relational .localstorage file are both accepted. Keys and values are
printed with non-printable bytes escaped as \xNN.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)

	inspectCmd.Flags().String("format", "json", "output format ('json' or 'jsonl')")
}

// inspectRecord is one local storage entry with escaped strings
type inspectRecord struct {
	Origin string `json:"origin,omitempty"`
	Key    string `json:"key"`
	Value  string `json:"value"`
}

func runInspect(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	if format != "json" && format != "jsonl" {
		return fmt.Errorf("unknown format %q: %w", format, util.ErrInvalidConfig)
	}

	path := ""
	if len(args) == 1 {
		path = args[0]
	} else {
		resolved, err := resolveStorePath()
		if err != nil {
			return err
		}
		path = resolved
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("cannot access %s: %w", path, err)
	}

	var records []inspectRecord
	if info.IsDir() {
		records, err = readKeyValueStore(path)
	} else {
		records, err = readRelationalStore(path)
	}
	if err != nil {
		return err
	}

	util.InfoLog("%d records in %s", len(records), path)
	return writeRecords(cmd.OutOrStdout(), records, format)
}

// resolveStorePath finds the destination store for the configured app
func resolveStorePath() (string, error) {
	candidates, err := configuredCandidates()
	if err != nil {
		return "", err
	}
	origin, err := configuredOrigin()
	if err != nil {
		return "", err
	}
	primary, fallback := versionSources()

	resolver := &layout.Resolver{
		Primary:   primary,
		Fallback:  fallback,
		PackageID: GetConfigString("webview-package", ""),
		Origin:    origin,
	}
	lay, err := resolver.Resolve(locate.StorageRoot(candidates[0]))
	if err != nil {
		return "", err
	}
	return lay.StorePath, nil
}

func readKeyValueStore(path string) ([]inspectRecord, error) {
	store, err := kvstore.OpenReadOnly(path)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	var records []inspectRecord
	err = store.Iterate(func(k, v []byte) error {
		rec := inspectRecord{Key: escapeBytes(k), Value: escapeBytes(v)}
		if prefix, key, ok := transcode.SplitOriginKey(k); ok {
			rec.Origin = strings.TrimPrefix(prefix, "_")
			rec.Key = escapeBytes(key)
			if value, ok := transcode.SplitOriginValue(v); ok {
				rec.Value = escapeBytes(value)
			}
		}
		records = append(records, rec)
		return nil
	})
	return records, err
}

func readRelationalStore(path string) ([]inspectRecord, error) {
	db, err := legacy.Open(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []inspectRecord
	for rows.Next() {
		item, err := rows.Item()
		if err != nil {
			return nil, err
		}
		value, err := transcode.DecodeUTF16LE(item.Value)
		if err != nil {
			// Show the raw bytes rather than hide the record
			value = item.Value
		}
		records = append(records, inspectRecord{Key: escapeBytes([]byte(item.Key)), Value: escapeBytes(value)})
	}
	return records, rows.Err()
}

func writeRecords(w io.Writer, records []inspectRecord, format string) error {
	if format == "jsonl" {
		for _, rec := range records {
			line, err := json.Marshal(rec)
			if err != nil {
				return fmt.Errorf("failed to marshal record: %w", err)
			}
			fmt.Fprintln(w, string(line))
		}
		return nil
	}

	if records == nil {
		records = []inspectRecord{}
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(records)
}

// escapeBytes keeps printable ASCII and escapes everything else, and the
// backslash itself, as \xNN.
func escapeBytes(b []byte) string {
	var sb strings.Builder
	for _, c := range b {
		if c < utf8.RuneSelf && unicode.IsPrint(rune(c)) && c != '\\' {
			sb.WriteByte(c)
		} else {
			sb.WriteString(fmt.Sprintf("\\x%02x", c))
		}
	}
	return sb.String()
}
