package main

import (
	"chat-presence/repositories"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/database"
	"github.com/olekukonko/tablewriter"
)

func main() {
	dbPath := flag.String("db", database.DefaultPath, "Path to badger DB")
	prefix := flag.String("prefix", "msg:", "Prefix to scan (msg:, inbox:, user:, email:, presence:)")
	flag.Parse()

	db, err := openDB(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "Type", "Timestamp", "From", "To", "Status", "Detail"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(*prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			item := it.Item()
			rawKey := string(item.Key())
			err := item.Value(func(v []byte) error {
				row, err := toRow(rawKey, v)
				if err != nil {
					// a corrupted value must not hide the rest of the scan
					fmt.Printf("Error decoding key %s: %v\n", rawKey, err)
					return nil
				}
				table.Append(row)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Fatal(err)
	}

	table.Render()
}

func toRow(key string, value []byte) ([]string, error) {
	switch {
	case strings.HasPrefix(key, "msg:"):
		m, err := repositories.DecodeMessage(value)
		if err != nil {
			return nil, err
		}
		return []string{key, "MESSAGE", m.CreatedAt.Format("15:04:05.000"),
			string(m.SenderID), string(m.ReceiverID), m.Status.String(), truncate(m.Content, 40)}, nil
	case strings.HasPrefix(key, "inbox:"):
		// inbox:{receiver}:{status}:{sender}:{timestamp}:{id}
		parts := strings.Split(key, ":")
		if len(parts) != 6 {
			return nil, fmt.Errorf("unexpected inbox key layout")
		}
		return []string{key, "INBOX", parts[4], parts[3], parts[1], parts[2], parts[5]}, nil
	case strings.HasPrefix(key, "user:"):
		u, err := repositories.DecodeUser(value)
		if err != nil {
			return nil, err
		}
		return []string{key, "USER", u.CreatedAt.Format("2006-01-02 15:04:05"), u.Username, "", "", u.Email}, nil
	case strings.HasPrefix(key, "presence:"):
		p, err := repositories.DecodePresence(value)
		if err != nil {
			return nil, err
		}
		presence := "offline"
		if p.Online {
			presence = "online"
		}
		return []string{key, "PRESENCE", p.LastSeen.Format("15:04:05"), "", "", presence, ""}, nil
	case strings.HasPrefix(key, "email:"):
		return []string{key, "EMAIL", "", "", "", "", string(value)}, nil
	default:
		return []string{key, "UNKNOWN", "", "", "", "", fmt.Sprintf("%d bytes", len(value))}, nil
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}

func openDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true)
	return badger.Open(opts)
}
