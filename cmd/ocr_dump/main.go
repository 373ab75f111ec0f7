package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"finapi/pkg/logx"
	"finapi/pkg/receipt"
)

func main() {
	file := flag.String("file", "", "image file to OCR")
	lang := flag.String("lang", "", "tesseract language, e.g. eng or ind")
	text := flag.Bool("text", false, "print the recognized text")
	flag.Parse()
	if *file == "" {
		fmt.Fprintln(os.Stderr, "--file is required")
		os.Exit(2)
	}

	log := logx.New(logx.Config{Output: os.Stderr, Component: logx.ComponentReceipts})
	res, err := receipt.NewScanner(receipt.Tesseract{Language: *lang}, log).Scan(context.Background(), *file)
	if *text && res.Text != "" {
		fmt.Println(res.Text)
		fmt.Println("----")
	}
	switch {
	case errors.Is(err, receipt.ErrNoAmount):
		fmt.Println("no amount found")
	case err != nil:
		log.Err(context.Background(), "scan", err, "file", *file)
		os.Exit(1)
	default:
		fmt.Printf("amount=%s conf=%.4f found=%q\n", res.Amount.StringFixed(2), res.Confidence, res.Raw)
	}
}
