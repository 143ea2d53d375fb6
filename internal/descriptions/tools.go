package descriptions

// Tool descriptions with practical examples and use cases

const (
	// Extraction Tools
	PDFExtractFaithfulDescription = `Extract the full structure of a PDF: positioned text, ruled tables, images with OCR overlays and vector shapes.

**When to use:** Need machine-readable structure with exact positions, for example to rebuild a layout, compare revisions or feed tables to another system.

**Why it's useful:** Tables are only built where the page draws ruling, so no cell is invented. Every element carries its page-relative bounding box and a confidence.

**Examples:**
• Composition tables: "Get the ingredient table of leaflet.pdf with its cell grid"
• Scanned forms: "Read scanned-label.pdf and list the OCR words with their confidences"
• Layout audit: "List every element on page 2 of spec-sheet.pdf in reading order"

**Common workflows:**
1. Data capture: Extract → read structure.tables → validate cell values
2. Review: Extract → check errors and failed_pages → reprocess after fixing the source
3. Reconstruction: Extract → pdf_extract_html for the visual copy

**Best practices:** Inspect "extracted" and "errors" first. A failed page is a placeholder, the rest of the document is still usable. Pass reprocess=true to bypass the cache.`

	PDFExtractHTMLDescription = `Rebuild a PDF as positioned, editable HTML that looks like the original page.

**When to use:** Need a faithful visual copy in the browser, or a single page as an HTML fragment.

**Why it's useful:** Text, tables, images and shapes are placed by page percentages or points, so the copy scales with the viewport. OCR words are editable with validation hints.

**Examples:**
• Visual diff: "Render page 1 of label-v2.pdf as HTML"
• Correction: "Give me editable HTML of scanned-batch-record.pdf"

**Best practices:** Pass page to get one page fragment. Without it the whole document with its stylesheet and script is returned.`

	PDFExtractMarkdownDescription = `Convert a PDF to GitHub flavored markdown built from its extracted structure.

**When to use:** Need readable text for an LLM, a wiki or a diff, with tables kept as markdown tables.

**Why it's useful:** Headings, lists and tables come from the structural extraction, not from a flat text dump.

**Examples:**
• Summaries: "Convert guideline.pdf to markdown and summarize the dosage section"
• Documentation: "Turn datasheet.pdf into markdown for the wiki"`

	PDFCapabilitiesDescription = `Report what this server can do: PDF backends, OCR engine, rasterizer and limits.

**When to use:** Before extracting scanned documents, to check whether OCR and rasterization are available.

**Why it's useful:** Scanned pages only produce text when an OCR engine is present. The report shows which backends are tried and in what order.`

	// Search and Discovery Tools
	PDFSearchDirectoryDescription = `Discover and filter PDF files in the configured directory with fuzzy name matching.

**When to use:** Need to find the right document before extracting it.

**Examples:**
• "Find every PDF with 'leaflet' in its name"
• "List the PDFs in /data/labels"

**Best practices:** Searches stay inside the configured PDF directory. Use the returned path with the extraction tools.`
)
