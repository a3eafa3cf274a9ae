package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/codefionn/pfortner/internal/config"
	"github.com/codefionn/pfortner/internal/protocol"
)

// runCall performs one broker operation named by the first argument and
// prints the result as indented JSON.
func runCall(args []string) error {
	fs := flag.NewFlagSet("call", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to the configuration file")
	timeout := fs.Duration("timeout", 30*time.Second, "call timeout")

	x := fs.Int("x", 0, "click: x coordinate")
	y := fs.Int("y", 0, "click: y coordinate")
	button := fs.String("button", "", "click: mouse button (left, right, middle)")
	keys := fs.String("keys", "", "sendKeys: key text")
	window := fs.String("window", "", "sendKeys: target window title")
	key := fs.String("key", "", "registry: key path")
	valueName := fs.String("value-name", "", "registry: value name")
	value := fs.String("value", "", "registryWrite: value (JSON or plain string)")
	file := fs.String("file", "", "processStart: executable name")
	procArgs := fs.String("args", "", "processStart: arguments")
	workdir := fs.String("workdir", "", "processStart: working directory")
	pid := fs.Int("pid", 0, "processTerminate: process id")
	path := fs.String("path", "", "file operations: file path")
	content := fs.String("content", "", "fileWrite: content")
	encoding := fs.String("encoding", "", `file operations: "utf-8" or "base64"`)
	output := fs.String("o", "", "takeScreenshot: write the image to this file instead of printing")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: pfortner call <operation> [flags]\n\nOperations: %v\n\nFlags:\n", protocol.Operations)
		fs.PrintDefaults()
	}

	if len(args) == 0 {
		fs.Usage()
		return fmt.Errorf("call: operation is required")
	}
	operation := args[0]
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	client, err := newClient(cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	var result interface{}
	switch operation {
	case protocol.OpClick:
		result, err = client.Click(ctx, *x, *y, *button)
	case protocol.OpSendKeys:
		result, err = client.SendKeys(ctx, *keys, *window)
	case protocol.OpGetWindows:
		result, err = client.GetWindows(ctx)
	case protocol.OpRegistryRead:
		result, err = client.ReadRegistry(ctx, *key, *valueName)
	case protocol.OpRegistryWrite:
		result, err = client.WriteRegistry(ctx, *key, *valueName, parseValue(*value))
	case protocol.OpProcessStart:
		result, err = client.StartProcess(ctx, *file, *procArgs, *workdir)
	case protocol.OpProcessTerminate:
		result, err = client.TerminateProcess(ctx, *pid)
	case protocol.OpFileRead:
		result, err = client.ReadFile(ctx, *path, *encoding)
	case protocol.OpFileWrite:
		result, err = client.WriteFile(ctx, *path, *content, *encoding)
	case protocol.OpTakeScreenshot:
		var shot protocol.ScreenshotResult
		shot, err = client.TakeScreenshot(ctx)
		if err == nil && *output != "" {
			return saveScreenshot(shot, *output)
		}
		result = shot
	default:
		return fmt.Errorf("call: unknown operation %q", operation)
	}
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

// parseValue interprets a registry value flag: JSON when it parses, the
// plain string otherwise, so `-value 42` is a number and `-value abc` text.
func parseValue(s string) interface{} {
	var v interface{}
	if err := json.Unmarshal([]byte(s), &v); err == nil {
		return v
	}
	return s
}

func saveScreenshot(shot protocol.ScreenshotResult, path string) error {
	data, err := base64.StdEncoding.DecodeString(shot.ImageBase64)
	if err != nil {
		return fmt.Errorf("decode screenshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return err
	}
	fmt.Printf("wrote %dx%d %s image to %s\n", shot.Width, shot.Height, shot.Format, path)
	return nil
}
