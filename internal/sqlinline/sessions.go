package sqlinline

const QInsertSession = `--sql f3f3697d-83e1-4f78-af2c-3068b3dd55d8
insert into design_sessions (id, locale, design_state, created_at, updated_at)
values ($1::uuid, $2::text, $3::jsonb, now(), now())
returning created_at, updated_at;
`

const QSelectSessionByID = `--sql d3b69437-0818-4f37-a0fb-289c4103a0c0
select id::text, locale, design_state, product_id, created_at, updated_at
from design_sessions
where id = $1::uuid;
`

const QUpdateSessionDesignState = `--sql 7649188e-a7b7-4156-889e-2ff1fc9c232e
update design_sessions
set design_state = $2::jsonb, updated_at = now()
where id = $1::uuid;
`

const QUpdateSessionProductID = `--sql 5a5e830b-2830-4709-b99e-932a3297eec9
update design_sessions
set product_id = $2::bigint, updated_at = now()
where id = $1::uuid;
`
