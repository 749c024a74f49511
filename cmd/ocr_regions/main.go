// Command ocr_regions dumps the preprocessed crops for a screenshot and,
// with -ocr, what the engine reads from each. Used to tune region
// annotations and the preprocessing knobs.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"leaguestats/pkg/catalog"
	"leaguestats/pkg/ocr"
	"leaguestats/pkg/region"
	"leaguestats/pkg/statparse"
)

func main() {
	file := flag.String("file", "", "screenshot to crop")
	regionsArg := flag.String("regions", "", `regions as JSON, e.g. [{"x":0,"y":0,"width":200,"height":60}]; default reads <file>.json`)
	out := flag.String("out", "", "directory for crop PNGs (default: next to the screenshot)")
	runOCR := flag.Bool("ocr", false, "run Tesseract on every crop")
	lang := flag.String("lang", "eng", "Tesseract language")
	threshold := flag.Int("threshold", int(region.DefaultOptions().Threshold), "binarization threshold 1..255")
	flag.Parse()
	if *file == "" {
		log.Fatalf("-file required")
	}

	raw := []byte(*regionsArg)
	if *regionsArg == "" {
		b, err := os.ReadFile(strings.TrimSuffix(*file, filepath.Ext(*file)) + ".json")
		if err != nil {
			log.Fatalf("no -regions and no manifest: %v", err)
		}
		var m struct {
			Regions json.RawMessage `json:"regions"`
		}
		if err := json.Unmarshal(b, &m); err != nil {
			log.Fatalf("manifest: %v", err)
		}
		raw = m.Regions
	}
	var regions []region.Region
	if err := json.Unmarshal(raw, &regions); err != nil {
		log.Fatalf("regions: %v", err)
	}

	data, err := os.ReadFile(*file)
	if err != nil {
		log.Fatalf("read: %v", err)
	}
	img, err := region.DecodeBytes(data)
	if err != nil {
		log.Fatalf("decode: %v", err)
	}
	opts := region.DefaultOptions()
	if *threshold >= 1 && *threshold <= 255 {
		opts.Threshold = uint8(*threshold)
	}
	crops, err := region.NewExtractor(opts).Extract(img, regions)
	if err != nil {
		log.Fatalf("extract: %v", err)
	}

	dir := *out
	if dir == "" {
		dir = filepath.Dir(*file)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Fatalf("mkdir: %v", err)
	}
	stem := strings.TrimSuffix(filepath.Base(*file), filepath.Ext(*file))

	var engine ocr.Recognizer
	if *runOCR {
		engine = ocr.NewTesseract(ocr.TesseractConfig{Language: *lang, Whitelist: ocr.StatChars})
	}
	var texts []ocr.Result
	for _, c := range crops {
		if !c.OK() {
			fmt.Printf("region %d %s: skipped: %v\n", c.Index, c.Region, c.Err)
			continue
		}
		png, err := region.EncodePNG(c.Image)
		if err != nil {
			log.Fatalf("encode: %v", err)
		}
		path := filepath.Join(dir, fmt.Sprintf("%s.crop%d.png", stem, c.Index))
		if err := os.WriteFile(path, png, 0o644); err != nil {
			log.Fatalf("write: %v", err)
		}
		fmt.Printf("region %d %s -> %s\n", c.Index, c.Region, path)
		if engine == nil {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		res, err := engine.Recognize(ctx, png)
		cancel()
		if err != nil {
			fmt.Printf("  ocr error: %v\n", err)
			continue
		}
		fmt.Printf("  conf=%.3f text=%q\n", res.Confidence, res.Text)
		texts = append(texts, res)
	}

	if len(texts) == 0 {
		return
	}
	set := statparse.New(catalog.Default(), statparse.DefaultOptions()).Parse(ocr.Join(texts...))
	b, _ := json.MarshalIndent(set, "", "  ")
	fmt.Printf("parsed:\n%s\n", b)
}
