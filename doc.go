// Package docscan embeds the docscan extraction pipeline in a Go program.
//
// The client reads section values from scanned documents (PDFs and page
// images, local paths or http(s) URLs) with a vision model served by an
// OpenAI-compatible endpoint or a local Ollama instance.
//
//	client, _ := docscan.New(ctx,
//	    docscan.WithAPI("https://api.mistral.ai/v1/chat/completions", key, "pixtral-large-latest"),
//	    docscan.WithPoolSize(8),
//	)
//	defer client.Close()
//
//	sections, _ := client.Sections(ctx, "scan.pdf")
//	report, _ := client.Extract(ctx, []string{"scan.pdf"}, docscan.Titles(sections),
//	    docscan.WithExpertPrompt("dates as YYYY-MM-DD"),
//	)
package docscan
