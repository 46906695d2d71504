package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/reply-tracker/internal/logger"
	"github.com/spigell/reply-tracker/internal/sheet"
)

// templateHeader is the first row of a new tracking document. Status and
// Notes sit at the columns the tracker writes to.
var templateHeader = []string{"Company", "Position", "Applied", "Contact", "Status", "Notes"}

var setCmd = &cobra.Command{
	Use:   "set ROW COLUMN VALUE",
	Short: "Correct a single cell of the tracking document",
	Args:  cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		set(cmd, args)
	},
}

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Print the tracking document the way the classifier sees it",
	Run: func(cmd *cobra.Command, _ []string) {
		snapshot(cmd)
	},
}

var initCmd = &cobra.Command{
	Use:   "init PATH",
	Short: "Create an empty tracking document",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		initDocument(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(setCmd, snapshotCmd, initCmd)

	for _, cmd := range []*cobra.Command{setCmd, snapshotCmd} {
		cmd.Flags().StringP("file", "f", "", "tracking document path (default is the sheet of the selected stream)")
		cmd.Flags().String("sheet", "", "worksheet name (default is the first one)")
		cmd.Flags().StringP("stream", "s", "", "stream whose document is used")
	}

	setCmd.Flags().String("style", "", "style tag of the cell: dark-red, dark-yellow, green, blue or none")
	setCmd.Flags().BoolP("auto-approve", "y", false, "do not ask for confirmation")

	initCmd.Flags().String("sheet", "", "worksheet name (default is Sheet1)")
}

func newCommandLogger() *zap.Logger {
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}
	return logger
}

func openDocument(cmd *cobra.Command, logger *zap.Logger) (*sheet.Document, error) {
	path, _ := cmd.Flags().GetString("file")
	name, _ := cmd.Flags().GetString("sheet")

	if path != "" {
		return sheet.Open(path, name, logger)
	}

	config, err := getConfig()
	if err != nil {
		return nil, fmt.Errorf("getting a config: %w", err)
	}
	if config == nil {
		return nil, errors.New("config is required without --file")
	}

	streamName, _ := cmd.Flags().GetString("stream")
	cfg, err := findStream(config, streamName)
	if err != nil {
		return nil, err
	}

	return openStreamDocument(cfg, logger)
}

func set(cmd *cobra.Command, args []string) {
	logger := newCommandLogger()

	row, err := strconv.Atoi(args[0])
	if err != nil {
		logger.Fatal("parsing row", zap.Error(err))
	}

	col, err := strconv.Atoi(args[1])
	if err != nil {
		logger.Fatal("parsing column", zap.Error(err))
	}

	flag, _ := cmd.Flags().GetString("style")
	style, ok := sheet.ParseStyle(flag)
	if !ok {
		logger.Fatal("unknown style", zap.String("style", flag))
	}

	doc, err := openDocument(cmd, logger)
	if err != nil {
		logger.Fatal("opening tracking document", zap.Error(err))
	}
	defer doc.Close()

	current, err := doc.ReadCell(row, col)
	if err != nil {
		logger.Fatal("reading cell", zap.Error(err))
	}

	if approve, _ := cmd.Flags().GetBool("auto-approve"); !approve {
		fmt.Printf("Row %d, column %d: %q -> %q\n", row, col, current, args[2])

		ok, err := promptConfirm("Write the cell?")
		if err != nil {
			logger.Fatal("prompt failed", zap.Error(err))
		}
		if !ok {
			logger.Info("exiting", zap.String("reason", "declined"))
			return
		}
	}

	if err := doc.WriteCell(row, col, args[2], style); err != nil {
		logger.Fatal("writing cell", zap.Error(err))
	}

	logger.Info("cell updated",
		zap.Int("row", row),
		zap.Int("column", col),
		zap.String("style", string(style)),
	)
}

func snapshot(cmd *cobra.Command) {
	logger := newCommandLogger()

	doc, err := openDocument(cmd, logger)
	if err != nil {
		logger.Fatal("opening tracking document", zap.Error(err))
	}
	defer doc.Close()

	text, err := doc.Snapshot()
	if err != nil {
		logger.Fatal("reading tracking document", zap.Error(err))
	}

	fmt.Print(text)
}

func initDocument(cmd *cobra.Command, path string) {
	logger := newCommandLogger()

	if _, err := os.Stat(path); err == nil {
		logger.Fatal("tracking document already exists", zap.String("path", path))
	} else if !errors.Is(err, fs.ErrNotExist) {
		logger.Fatal("checking path", zap.Error(err))
	}

	name, _ := cmd.Flags().GetString("sheet")

	doc, err := sheet.Create(path, name, [][]string{templateHeader}, logger)
	if err != nil {
		logger.Fatal("creating tracking document", zap.Error(err))
	}
	defer doc.Close()

	logger.Info("tracking document created", zap.String("path", path))
}
