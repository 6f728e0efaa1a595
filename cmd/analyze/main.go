package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"sanbot-be/internal/config"
	"sanbot-be/internal/pkg/logger"
	"sanbot-be/internal/service"
	"sanbot-be/pkg/session"
	"sanbot-be/pkg/tabular"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// stdoutMessenger satisfies the delivery contract for offline runs: text goes
// to stdout, chart images are written next to the inputs.
type stdoutMessenger struct {
	outDir string
	count  int
}

func (m *stdoutMessenger) SendText(userID, content string) error {
	fmt.Println(content)
	return nil
}

func (m *stdoutMessenger) SendImage(userID string, png []byte) error {
	m.count++
	path := filepath.Join(m.outDir, fmt.Sprintf("chart_%02d.png", m.count))
	if err := os.WriteFile(path, png, 0o644); err != nil {
		return err
	}
	fmt.Printf("[chart] %s\n", path)
	return nil
}

func main() {
	instruction := flag.String("instruction", "战功差", "analysis instruction")
	outDir := flag.String("out", ".", "directory for generated chart images")
	asJSON := flag.Bool("json", false, "print the structured result as JSON")
	flag.Parse()

	if flag.NArg() != 2 {
		log.Fatalf("usage: analyze [-instruction 指令] [-out dir] [-json] <file1.csv> <file2.csv>")
	}

	cfg := config.Load()
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, false)

	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NewStdLogger(false, false))
	messenger := &stdoutMessenger{outDir: *outDir}
	analysis := service.NewAnalysisService(
		pubSub, tabular.DefaultRegistry(), messenger, nil, nil, sysLogger, cfg.Analysis,
	)

	file1 := session.FileRef{Path: flag.Arg(0), Name: filepath.Base(flag.Arg(0))}
	file2 := session.FileRef{Path: flag.Arg(1), Name: filepath.Base(flag.Arg(1))}

	result := analysis.RunDirect(context.Background(), file1, file2, *instruction)
	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			log.Fatal(err)
		}
	} else {
		fmt.Println(result.Report)
	}
	if !result.Success {
		os.Exit(1)
	}
}
