package sqlinline

const QInsertMessage = `--sql 94123b0d-a628-4668-b263-6b5958f9eb04
insert into messages (id, session_id, role, content, artifact_id, job_id, created_at)
values ($1::uuid, $2::uuid, $3::text, $4::text, nullif($5::text, '')::uuid, nullif($6::text, '')::uuid, now())
on conflict (id) do nothing;
`

const QListMessagesBySession = `--sql f06f99b2-dac4-44f1-821d-5a8213580627
select id::text, session_id::text, role, content, coalesce(artifact_id::text, ''), coalesce(job_id::text, ''), created_at
from messages
where session_id = $1::uuid
order by created_at asc
limit $2::int;
`
