package mcpserver

// ItemFormatContract describes the vault layout and item envelope that
// LLM consumers should follow when reading or writing vault files.
const ItemFormatContract = `# docvault Item Format

## Layout

` + "```" + `text
documents/<id>/source.pdf   original upload
documents/<id>/text.txt     OCR output
documents/<id>/meta.json    item envelope (item_type "document")
memos/<id>/item.json        item envelope (item_type "memo")
clients.json                {"clients": [...]}
` + "```" + `

A document id is derived from the PDF content, so the same file always lands
in the same directory. Memo ids are random UUIDs.

## Envelope

` + "```" + `json
{
  "item_version": 1,
  "id": "<uuid>",
  "item_type": "document",
  "client_id": null,
  "status": "ready",
  "created_at": "2024-05-01T12:00:00Z",
  "source": {
    "original_filename": "invoice.pdf",
    "path": "documents/<id>/source.pdf",
    "sha256": "<hex>"
  },
  "metadata": {"title": "Invoice 7", "total_bill": 99.5},
  "error": ""
}
` + "```" + `

## Rules

1. ` + "`" + `item_type` + "`" + ` must match the directory (documents/ or memos/) and never changes.
2. ` + "`" + `status` + "`" + ` is processing, ready or error. Only processing may move, to ready or error.
3. ` + "`" + `source` + "`" + ` is present on documents only.
4. Memos carry ` + "`" + `metadata.title` + "`" + ` and ` + "`" + `metadata.text` + "`" + `.
5. Files that break these rules are skipped by the index and reported as warnings.
6. Older layouts (flat ` + "`" + `*_meta.json` + "`" + ` files, memo-*.json) are converted by ` + "`" + `docvault migrate` + "`" + `.
`
