// Command inspect prints the contents of a relay badger store as tables.
//
//	inspect -db data/relay                     sessions
//	inspect -db data/relay -groups             groups
//	inspect -db data/relay -session alice_bob  newest messages of one session
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/dgraph-io/badger/v4"
	"github.com/olekukonko/tablewriter"
	"github.com/vedran77/relay/internal/domain"
	"github.com/vedran77/relay/internal/repository/badgerdb"
)

func main() {
	dbPath := flag.String("db", "data/relay", "Path to badger DB")
	groups := flag.Bool("groups", false, "List groups instead of sessions")
	sessionID := flag.String("session", "", "Print the messages of this session")
	limit := flag.Int("limit", 50, "Messages to print with -session")
	flag.Parse()

	db, err := badger.Open(badger.DefaultOptions(*dbPath).WithReadOnly(true).WithLogger(nil))
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)

	switch {
	case *sessionID != "":
		err = printMessages(table, db, *sessionID, *limit)
	case *groups:
		err = printGroups(table, db)
	default:
		err = printSessions(table, db)
	}
	if err != nil {
		log.Fatal(err)
	}
	table.Render()
}

func printSessions(table *tablewriter.Table, db *badger.DB) error {
	table.SetHeader([]string{"Session", "Messages", "Last sender", "Last message", "Last at"})
	return scan(db, "session:", func(s *domain.Session) {
		table.Append([]string{
			s.ID,
			strconv.FormatInt(s.MessageCount, 10),
			string(s.LastSender),
			s.LastMessage,
			s.LastMessageAt.Format("2006-01-02 15:04:05"),
		})
	})
}

func printGroups(table *tablewriter.Table, db *badger.DB) error {
	table.SetHeader([]string{"Group", "Name", "Members", "Messages", "Last at"})
	return scan(db, "group:", func(g *domain.Group) {
		table.Append([]string{
			g.ID,
			g.Name,
			strconv.Itoa(len(g.Members)),
			strconv.FormatInt(g.MessageCount, 10),
			g.LastMessageAt.Format("2006-01-02 15:04:05"),
		})
	})
}

func printMessages(table *tablewriter.Table, db *badger.DB, sessionID string, limit int) error {
	table.SetHeader([]string{"ID", "Sender", "Body", "Read", "Deleted", "At"})
	store := badgerdb.NewStore(db)
	msgs, err := store.Sessions.ListMessages(context.Background(), sessionID, nil, limit)
	if err != nil {
		return err
	}
	for i := len(msgs) - 1; i >= 0; i-- {
		m := msgs[i]
		table.Append([]string{
			m.ID,
			string(m.Sender),
			m.Body,
			strconv.FormatBool(m.Read),
			strconv.FormatBool(m.Deleted),
			m.Timestamp.Format("15:04:05.000000"),
		})
	}
	return nil
}

func scan[T any](db *badger.DB, prefix string, fn func(*T)) error {
	return db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			item := it.Item()
			err := item.Value(func(v []byte) error {
				var rec T
				if err := json.Unmarshal(v, &rec); err != nil {
					fmt.Printf("Error decoding key %s: %v\n", item.Key(), err)
					return nil
				}
				fn(&rec)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}
