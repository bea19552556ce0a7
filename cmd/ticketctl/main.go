// Command ticketctl is a maintenance CLI over the ticketing storage core:
// load seed data, dump index contents, fsck the value files' CRC32
// columns, and run a small single-threaded throughput benchmark. It plays
// the role the teacher's cmd/demo and cmd/benchmark play for the hash
// index / LSM engines, adapted to this module's B+ tree indexes.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/HenryHe0123/ticket-storage/btree"
	"github.com/HenryHe0123/ticket-storage/fixedrecord"
	"github.com/HenryHe0123/ticket-storage/index"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	verb := os.Args[1]
	args := os.Args[2:]

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	var err error
	switch verb {
	case "load":
		err = runLoad(args, logger)
	case "dump":
		err = runDump(args, logger)
	case "fsck":
		err = runFsck(args, logger)
	case "bench":
		err = runBench(args, logger)
	default:
		usage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "ticketctl:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: ticketctl <load|dump|fsck|bench> -dir <path> [flags]")
}

func openStore(dir string, checksum bool, logger *zap.Logger) (*index.Store, error) {
	cfg := index.DefaultConfig(dir)
	cfg.Tree.Logger = logger
	cfg.Tree.Checksum = checksum
	return index.Open(cfg)
}

// runLoad reads username,password,name,mail,privilege rows from a CSV file
// and assigns each into index.Users.
func runLoad(args []string, logger *zap.Logger) error {
	fs := flag.NewFlagSet("load", flag.ExitOnError)
	dir := fs.String("dir", "", "data directory")
	usersFile := fs.String("users", "", "path to a username,password,name,mail,privilege CSV file")
	fs.Parse(args)
	if *dir == "" || *usersFile == "" {
		return fmt.Errorf("load requires -dir and -users")
	}

	store, err := openStore(*dir, false, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	f, err := os.Open(*usersFile)
	if err != nil {
		return err
	}
	defer f.Close()

	n := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Split(line, ",")
		if len(fields) != 5 {
			logger.Warn("skipping malformed row", zap.String("line", line))
			continue
		}
		privilege, err := strconv.Atoi(strings.TrimSpace(fields[4]))
		if err != nil {
			logger.Warn("skipping row with bad privilege", zap.String("line", line))
			continue
		}
		rec := fixedrecord.UserRecord{
			Username:  fixedrecord.NewString(20, strings.TrimSpace(fields[0])),
			Password:  fixedrecord.NewString(30, strings.TrimSpace(fields[1])),
			Name:      fixedrecord.NewString(15, strings.TrimSpace(fields[2])),
			Mail:      fixedrecord.NewString(30, strings.TrimSpace(fields[3])),
			Privilege: int32(privilege),
		}
		if err := store.Users.Assign(rec.Username, rec); err != nil {
			return fmt.Errorf("assign %s: %w", rec.Username.String(), err)
		}
		n++
	}
	if err := sc.Err(); err != nil {
		return err
	}
	fmt.Printf("loaded %d users into %s\n", n, *dir)
	return nil
}

// runDump prints the size of every index and a handful of sample entries.
func runDump(args []string, logger *zap.Logger) error {
	fs := flag.NewFlagSet("dump", flag.ExitOnError)
	dir := fs.String("dir", "", "data directory")
	limit := fs.Int("limit", 10, "max sample rows to print per index")
	fs.Parse(args)
	if *dir == "" {
		return fmt.Errorf("dump requires -dir")
	}

	store, err := openStore(*dir, false, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	fmt.Printf("users:             %d\n", store.Users.Size())
	shown := 0
	store.Users.ForEach(func(k fixedrecord.UserID, v fixedrecord.UserRecord) error {
		if shown >= *limit {
			return fmt.Errorf("stop")
		}
		fmt.Printf("  %-20s privilege=%d mail=%s\n", k.String(), v.Privilege, v.Mail.String())
		shown++
		return nil
	})

	fmt.Printf("unreleased trains: %d\n", store.UnreleasedTrains.Size())
	fmt.Printf("released trains:   %d\n", store.ReleasedTrains.Size())
	fmt.Printf("seat vectors:      %d\n", store.SeatVectors.Size())
	fmt.Printf("station index:     %d\n", store.StationIndex.Size())
	fmt.Printf("order log:         %d\n", store.OrderLog.Size())
	return nil
}

// runFsck verifies the CRC32 column of every unique-tree value file. It
// only reports anything meaningful for a store that was loaded with
// checksums enabled.
func runFsck(args []string, logger *zap.Logger) error {
	fs := flag.NewFlagSet("fsck", flag.ExitOnError)
	dir := fs.String("dir", "", "data directory")
	fs.Parse(args)
	if *dir == "" {
		return fmt.Errorf("fsck requires -dir")
	}

	store, err := openStore(*dir, true, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	type checkable struct {
		name string
		t    interface{ VerifyValues() (int, int, error) }
	}
	checks := []checkable{
		{"users", store.Users},
		{"unreleased trains", store.UnreleasedTrains},
		{"released trains", store.ReleasedTrains},
		{"seat vectors", store.SeatVectors},
	}

	totalCorrupt := 0
	for _, c := range checks {
		checked, corrupt, err := c.t.VerifyValues()
		if err != nil {
			return fmt.Errorf("fsck %s: %w", c.name, err)
		}
		fmt.Printf("%-20s checked=%-6d corrupt=%d\n", c.name, checked, corrupt)
		totalCorrupt += corrupt
	}
	if totalCorrupt > 0 {
		return fmt.Errorf("fsck found %d corrupt record(s)", totalCorrupt)
	}
	fmt.Println("fsck clean")
	return nil
}

// runBench runs a small single-threaded Assign/Find workload and reports
// throughput. It intentionally has no concurrency: the storage core has a
// single-mutator design, so a concurrent benchmark would not be measuring
// this engine.
func runBench(args []string, logger *zap.Logger) error {
	fs := flag.NewFlagSet("bench", flag.ExitOnError)
	dir := fs.String("dir", "", "data directory")
	n := fs.Int("n", 10000, "number of keys to assign and then look up")
	fs.Parse(args)
	if *dir == "" {
		return fmt.Errorf("bench requires -dir")
	}

	cfg := index.DefaultConfig(*dir)
	cfg.Tree = btree.Config{HalfBlock: 50, NodeCacheSize: 256, ValueCacheSize: 128, Logger: logger}
	users, err := index.OpenUsers(cfg)
	if err != nil {
		return err
	}
	defer users.Close()

	rec := fixedrecord.UserRecord{Privilege: 5}
	start := time.Now()
	for i := 0; i < *n; i++ {
		rec.Username = fixedrecord.NewString(20, fmt.Sprintf("user%d", i))
		if err := users.Assign(rec.Username, rec); err != nil {
			return err
		}
	}
	writeElapsed := time.Since(start)

	start = time.Now()
	for i := 0; i < *n; i++ {
		key := fixedrecord.NewString(20, fmt.Sprintf("user%d", i))
		if _, _, err := users.Find(key); err != nil {
			return err
		}
	}
	readElapsed := time.Since(start)

	fmt.Printf("assign: %d ops in %v (%.0f ops/s)\n", *n, writeElapsed, float64(*n)/writeElapsed.Seconds())
	fmt.Printf("find:   %d ops in %v (%.0f ops/s)\n", *n, readElapsed, float64(*n)/readElapsed.Seconds())
	return nil
}
