package store

const listResponsesSQL = `
SELECT record_id, product_id, license_key, sign_method, body, received_at, expires_at
FROM license_response
ORDER BY product_id, license_key
`

const listResponsesForProductSQL = `
SELECT record_id, product_id, license_key, sign_method, body, received_at, expires_at
FROM license_response
WHERE product_id = ?
ORDER BY license_key
`

const getResponseSQL = `
SELECT record_id, product_id, license_key, sign_method, body, received_at, expires_at
FROM license_response
WHERE product_id = ? AND license_key = ?
`

const createResponseSQL = `
INSERT INTO license_response (
    record_id, product_id, license_key, sign_method, body, received_at, expires_at
) VALUES (?, ?, ?, ?, ?, ?, ?)
`

const replaceResponseSQL = `
UPDATE license_response
SET sign_method = ?, body = ?, received_at = ?, expires_at = ?
WHERE product_id = ? AND license_key = ?
`

const getRecordIDSQL = `
SELECT record_id
FROM license_response
WHERE product_id = ? AND license_key = ?
`

const deleteResponseSQL = `
DELETE FROM license_response
WHERE product_id = ? AND license_key = ?
`

const getMachinesSQL = `
SELECT record_id, position, mid, ip, friendly_name, activated_at
FROM license_machine
WHERE record_id = ?
ORDER BY position
`

const deleteMachinesSQL = `
DELETE FROM license_machine
WHERE record_id = ?
`

const createMachineSQL = `
INSERT INTO license_machine (
    record_id, position, mid, ip, friendly_name, activated_at
) VALUES (?, ?, ?, ?, ?, ?)
`
