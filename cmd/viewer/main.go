// Package main is the entry point for the plate viewer core. It loads a
// dataset folder into a session and drives the viewing operations from a
// line-based command loop.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/incuview/viewer/internal/annotation"
	"github.com/incuview/viewer/internal/config"
	"github.com/incuview/viewer/internal/data/tiffio"
	"github.com/incuview/viewer/internal/plate"
	"github.com/incuview/viewer/internal/session"
)

func main() {
	configPath := flag.String("config", "config/viewer.yaml", "Path to configuration file")
	folder := flag.String("folder", "", "Image folder to open")
	flag.Parse()

	if *folder == "" {
		log.Fatal("a dataset folder is required (-folder)")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	sess, err := session.New(cfg, *folder, tiffio.NewDecoder())
	if err != nil {
		log.Fatalf("Failed to open dataset: %v", err)
	}
	defer sess.Close()

	log.Printf("Opened %s: plates %v", *folder, sess.Index.Plates())
	printPosition(sess)

	scanner := bufio.NewScanner(os.Stdin)
	fmt.Println(`commands: a/d timepoint, p/n well, o <well> open, w/s overlay on/off,
1/2/3 annotate, 0 clear, img <file.png> save view, e <file.csv> export, q quit`)
	for fmt.Print("> "); scanner.Scan(); fmt.Print("> ") {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if fields[0] == "q" {
			break
		}
		if err := run(sess, fields); err != nil {
			log.Printf("%v", err)
			continue
		}
		printPosition(sess)
	}
}

func run(sess *session.Session, fields []string) error {
	view := sess.View
	switch fields[0] {
	case "a":
		return view.PrevTimepoint()
	case "d":
		return view.NextTimepoint()
	case "p":
		return view.PrevWell()
	case "n":
		return view.NextWell()
	case "o":
		if len(fields) < 2 {
			return fmt.Errorf("usage: o <well>")
		}
		pos, err := view.Position()
		if err != nil {
			return err
		}
		w, err := plate.ParseWell(fields[1])
		if err != nil {
			return err
		}
		return view.OpenWell(pos.Plate, w)
	case "w":
		return view.SetOverlay(true)
	case "s":
		return view.SetOverlay(false)
	case "1":
		return view.Annotate(annotation.Singlet)
	case "2":
		return view.Annotate(annotation.Doublet)
	case "3":
		return view.Annotate(annotation.Inconclusive)
	case "0":
		return view.Annotate(annotation.None)
	case "img":
		if len(fields) < 2 {
			return fmt.Errorf("usage: img <file.png>")
		}
		data, err := view.CurrentImage(context.Background())
		if err != nil {
			return err
		}
		return os.WriteFile(fields[1], data, 0o644)
	case "e":
		if len(fields) < 2 {
			return fmt.Errorf("usage: e <file.csv>")
		}
		if err := view.ExportAnnotations(fields[1]); err != nil {
			return err
		}
		log.Printf("exported annotations to %s", fields[1])
		return nil
	}
	return fmt.Errorf("unknown command %q", fields[0])
}

func printPosition(sess *session.Session) {
	pos, err := sess.View.Position()
	if err != nil {
		return
	}
	label, _ := sess.View.CurrentAnnotation()
	overlay := ""
	if pos.Overlay {
		overlay = " +gfp"
	}
	note := ""
	if label != annotation.None {
		note = " [" + label.String() + "]"
	}
	fmt.Printf("plate %s well %s @ %s%s%s\n", pos.Plate, pos.Well, pos.Timepoint, overlay, note)
}
