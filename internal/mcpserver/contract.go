package mcpserver

// DisposisiPayloadContract describes the exact creation payload an LLM
// consumer must produce when creating dispositions.
const DisposisiPayloadContract = `# SINORAT Disposition Payload Contract

A disposition (disposisi) routes one incoming letter (surat masuk) to one or
more recipients. The creation payload carries EXACTLY these five fields and
nothing else.

## Fields

` + "```" + `json
{
  "letterIn_id": "ltr-001",          // REQUIRED - backend id of the letter
  "noDispo": 42,                      // REQUIRED - positive sequence number
  "tglDispo": "2025-01-20",           // REQUIRED - date, YYYY-MM-DD
  "dispoKe": ["Sekretaris", "Kabid"], // REQUIRED - at least one recipient
  "isiDispo": "Mohon ditindaklanjuti" // REQUIRED - 10 to 500 characters
}
` + "```" + `

## Rules

1. **letterIn_id** is the backend's opaque letter id, obtained from the
   search_letter tool. Never the agenda number.
2. **noDispo** should come from the next_disposition_number tool. The number
   is a hint; the backend enforces uniqueness and may reject a taken value.
3. **tglDispo** is a bare date in YYYY-MM-DD form, no time component.
4. **dispoKe** recipients are position titles, not personal names.
5. **isiDispo** is the instruction text, between 10 and 500 characters.
6. Do not add extra fields. The backend treats unknown fields as an error.

## Degraded operation

When the backend is unreachable, the disposition can be stored locally
instead. Locally stored records carry an id with the "offline-" prefix and
appear in the list_offline_dispositions tool until an operator replays them.
`
