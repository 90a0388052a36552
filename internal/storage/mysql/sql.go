package mysql

// INSERT IGNORE makes a replayed append a no-op on (target_key, fingerprint).
const insertReviewSQL = `
INSERT IGNORE INTO reviews
  (target_key, fingerprint, company, review_date, author, body, heading, rating, location, scraped_at, source_url)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

const loadFingerprintsSQL = `
SELECT fingerprint
FROM reviews
WHERE target_key = ?
`

const countReviewsSQL = `
SELECT COUNT(*)
FROM reviews
WHERE target_key = ?
`

// Newest first; served by ix_reviews_target_id.
const listReviewsSQL = `
SELECT company, review_date, author, body, heading, rating, location, scraped_at, source_url
FROM reviews
WHERE target_key = ?
ORDER BY id DESC
LIMIT ?
`
