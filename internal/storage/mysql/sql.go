package mysql

const insertJournalSQL = `
INSERT INTO booking_journal
  (operation, provider, provider_reference, offer_id, status, error_code, payload, created_at)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?)
`

// Newest first; id breaks ties inside one timestamp.
const listJournalByRefSQL = `
SELECT id, operation, provider, provider_reference, offer_id, status, error_code, payload, created_at
FROM booking_journal
WHERE provider_reference = ?
ORDER BY created_at DESC, id DESC
LIMIT ?
`
