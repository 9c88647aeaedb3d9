package sqlinline

const QInsertDocument = `--sql 1a71b277-d72f-4765-b020-8a9558f6ccd5
insert into documents (collection, id, fields)
values ($1, $2, $3)
on conflict (collection, id) do nothing;
`

const QMergeDocumentFields = `--sql c1a1516a-28d6-42ad-944b-a2294c92ab43
update documents
set fields = fields || $3::jsonb,
    updated_at = now()
where collection = $1 and id = $2;
`

const QSelectDocument = `--sql b9500827-2a8b-49d9-8b30-2d7cae413e9d
select fields, created_at, updated_at
from documents
where collection = $1 and id = $2;
`

const QSelectDocumentsByField = `--sql 3e3ae548-6561-4b36-8754-e00cfba90fbd
select id, fields, created_at, updated_at
from documents
where collection = $1 and fields->>$2 = $3
order by created_at desc
`
